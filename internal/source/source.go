// Package source supplies field observations to the pipeline.
package source

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rosterwatch/depthsync/internal/model"
)

// ObservationSource fetches the raw observations for one season and week.
type ObservationSource interface {
	Name() string
	Fetch(ctx context.Context, season, week int) ([]model.FieldObservation, error)
}

// Multi fans out to several sources concurrently and merges their
// observations. Any source error fails the fetch; the resolver needs the
// complete input set to produce deterministic output.
type Multi struct {
	sources []ObservationSource
}

// NewMulti combines sources into one.
func NewMulti(sources ...ObservationSource) *Multi {
	return &Multi{sources: sources}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Fetch(ctx context.Context, season, week int) ([]model.FieldObservation, error) {
	var mu sync.Mutex
	collected := make([][]model.FieldObservation, len(m.sources))

	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range m.sources {
		g.Go(func() error {
			observations, err := src.Fetch(gCtx, season, week)
			if err != nil {
				return err
			}
			mu.Lock()
			collected[i] = observations
			mu.Unlock()
			zap.L().Debug("source: fetched",
				zap.String("source", src.Name()),
				zap.Int("observations", len(observations)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in declaration order so repeated runs see the same input order.
	var merged []model.FieldObservation
	for _, observations := range collected {
		merged = append(merged, observations...)
	}
	return merged, nil
}

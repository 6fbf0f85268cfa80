// Package pipeline orchestrates the weekly status run: load inputs, resolve
// conflicts, score quality, publish.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rosterwatch/depthsync/internal/model"
	"github.com/rosterwatch/depthsync/internal/publisher"
	"github.com/rosterwatch/depthsync/internal/resolver"
	"github.com/rosterwatch/depthsync/internal/source"
	"github.com/rosterwatch/depthsync/internal/store"
	"github.com/rosterwatch/depthsync/internal/validator"
)

// historyWeeks is how many trailing weeks feed the validator's league
// averages and position benchmarks.
const historyWeeks = 4

// PhaseStatus is the outcome of one pipeline phase.
type PhaseStatus string

const (
	PhaseComplete PhaseStatus = "complete"
	PhaseFailed   PhaseStatus = "failed"
)

// PhaseResult tracks one phase's outcome and timing.
type PhaseResult struct {
	Name       string      `json:"name"`
	Status     PhaseStatus `json:"status"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// ExecutionResult is the full outcome of one pipeline run.
type ExecutionResult struct {
	Season           int                             `json:"season"`
	Week             int                             `json:"week"`
	ObservationCount int                             `json:"observation_count"`
	ResolveErrors    []resolver.ResolveError         `json:"resolve_errors,omitempty"`
	ConflictStats    model.ConflictStats             `json:"conflict_stats"`
	QualityReport    *validator.DatasetQualityReport `json:"quality_report,omitempty"`
	Publish          *model.PublishResult            `json:"publish,omitempty"`
	Phases           []PhaseResult                   `json:"phases"`
}

// Pipeline wires the stages together.
type Pipeline struct {
	store       store.Store
	observation source.ObservationSource
	resolverCfg *resolver.Config
	registry    *validator.Registry
	publisher   *publisher.Publisher
}

// New creates a Pipeline with all dependencies.
func New(st store.Store, obs source.ObservationSource, resolverCfg *resolver.Config, registry *validator.Registry, pub *publisher.Publisher) *Pipeline {
	if resolverCfg == nil {
		resolverCfg = resolver.DefaultConfig()
	}
	if registry == nil {
		registry = validator.NewRegistry()
	}
	return &Pipeline{
		store:       st,
		observation: obs,
		resolverCfg: resolverCfg,
		registry:    registry,
		publisher:   pub,
	}
}

// Run executes the full pipeline for one season and week.
func (p *Pipeline) Run(ctx context.Context, season, week int) (*ExecutionResult, error) {
	log := zap.L().With(zap.Int("season", season), zap.Int("week", week))
	log.Info("pipeline: starting run")

	result := &ExecutionResult{Season: season, Week: week}

	trackPhase := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		duration := time.Since(start).Milliseconds()

		pr := PhaseResult{Name: name, Status: PhaseComplete, DurationMs: duration}
		if err != nil {
			pr.Status = PhaseFailed
			pr.Error = err.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
		} else {
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}
		result.Phases = append(result.Phases, pr)
		return err
	}

	// ===== Phase 1: Load (observations, overrides, prior records in parallel) =====
	var observations []model.FieldObservation
	var overrides []model.ManualOverride
	var previous, history []model.ResolvedRecord

	err := trackPhase("load", func() error {
		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			var err error
			observations, err = p.observation.Fetch(gCtx, season, week)
			return eris.Wrap(err, "pipeline: fetch observations")
		})
		g.Go(func() error {
			var err error
			overrides, err = p.store.ListActiveOverrides(gCtx, season)
			return eris.Wrap(err, "pipeline: load overrides")
		})
		g.Go(func() error {
			var err error
			previous, err = p.store.ListRecords(gCtx, store.RecordFilter{
				Season: season, WeekFrom: week, WeekTo: week,
			})
			return eris.Wrap(err, "pipeline: load prior records")
		})
		g.Go(func() error {
			from := week - historyWeeks
			if from < 1 {
				from = 1
			}
			if from >= week {
				return nil
			}
			var err error
			history, err = p.store.ListRecords(gCtx, store.RecordFilter{
				Season: season, WeekFrom: from, WeekTo: week - 1,
			})
			return eris.Wrap(err, "pipeline: load history")
		})

		return g.Wait()
	})
	if err != nil {
		return result, err
	}
	result.ObservationCount = len(observations)

	// ===== Phase 2: Resolve =====
	var resolved *resolver.Result
	_ = trackPhase("resolve", func() error {
		resolved = resolver.New(p.resolverCfg).
			WithOverrides(overrides).
			WithPrevious(previous).
			Resolve(observations)
		return nil
	})
	result.ResolveErrors = resolved.Errors
	result.ConflictStats = resolved.Stats

	// ===== Phase 3: Validate =====
	err = trackPhase("validate", func() error {
		vctx := validator.BuildContext(season, week, history)
		report, recordReports := validator.ValidateDataset(p.registry, resolved.Records, vctx, fmt.Sprintf("%dW%d", season, week))
		result.QualityReport = report

		for i := range resolved.Records {
			validator.ApplyAdjustment(&resolved.Records[i], &recordReports[i])
		}

		// A critical-severity failure anywhere in the batch blocks the run
		// before anything is written.
		var critical []string
		for i := range recordReports {
			if recordReports[i].HasCriticalFailure() {
				critical = append(critical, recordReports[i].PlayerID)
			}
		}
		if len(critical) > 0 {
			return eris.Wrapf(validator.ErrCriticalFailure,
				"pipeline: %d record(s) failed critical checks: %s",
				len(critical), strings.Join(critical, ", "))
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	// ===== Phase 4: Publish =====
	err = trackPhase("publish", func() error {
		pub, err := p.publisher.Publish(ctx, season, week, resolved.Records, resolved.Stats, resolved.DiffLog)
		result.Publish = pub
		return err
	})
	if err != nil {
		return result, err
	}

	log.Info("pipeline: run complete",
		zap.Int("observations", result.ObservationCount),
		zap.Int("records", len(resolved.Records)),
		zap.Int("rejected", len(result.ResolveErrors)),
		zap.Bool("publish_success", result.Publish != nil && result.Publish.Success),
	)
	return result, nil
}

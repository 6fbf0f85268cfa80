// Package monitoring aggregates run statistics from the ingestion log.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rosterwatch/depthsync/internal/store"
)

// MetricsSnapshot holds a point-in-time view of publish health for one season.
type MetricsSnapshot struct {
	// Publish runs (within lookback window).
	RunsTotal          int     `json:"runs_total"`
	RunsSuccess        int     `json:"runs_success"`
	RunsPartialFailure int     `json:"runs_partial_failure"`
	FailRate           float64 `json:"fail_rate"`

	// Record volume across those runs.
	RecordsCreated int `json:"records_created"`
	RecordsUpdated int `json:"records_updated"`
	RecordsFailed  int `json:"records_failed"`

	// Resolution quality.
	AvgConfidence    float64 `json:"avg_confidence"`
	TotalConflicts   int     `json:"total_conflicts"`
	OverridesApplied int     `json:"overrides_applied"`
	AvgDurationMs    int64   `json:"avg_duration_ms"`

	// Metadata.
	Season        int       `json:"season"`
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the ingestion log.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of publish metrics for a season over the given
// lookback window.
func (c *Collector) Collect(ctx context.Context, season, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		Season:        season,
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	entries, err := c.store.ListIngestionLog(ctx, store.LogFilter{
		Season: season,
		Limit:  10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list ingestion log")
	}

	var confidenceSum float64
	var confidenceRuns int
	var durationSum int64

	for _, e := range entries {
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch e.Status {
		case "success":
			snap.RunsSuccess++
		case "partial_failure":
			snap.RunsPartialFailure++
		}

		snap.RecordsCreated += e.RecordsCreated
		snap.RecordsUpdated += e.RecordsUpdated
		snap.RecordsFailed += e.RecordsFailed
		snap.TotalConflicts += e.ConflictStats.TotalConflicts
		snap.OverridesApplied += e.ConflictStats.ManualOverridesApplied
		durationSum += e.DurationMs

		if e.ConflictStats.AvgConfidence > 0 {
			confidenceSum += e.ConflictStats.AvgConfidence
			confidenceRuns++
		}
	}

	if snap.RunsTotal > 0 {
		snap.FailRate = float64(snap.RunsPartialFailure) / float64(snap.RunsTotal)
		snap.AvgDurationMs = durationSum / int64(snap.RunsTotal)
	}
	if confidenceRuns > 0 {
		snap.AvgConfidence = confidenceSum / float64(confidenceRuns)
	}

	return snap, nil
}

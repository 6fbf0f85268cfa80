// Package publisher writes resolved player status to the database, captures
// an immutable snapshot, invalidates downstream caches, and records an audit
// trail. Writes are batched with per-record failure isolation: one bad record
// never aborts the batch.
package publisher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rosterwatch/depthsync/internal/model"
	"github.com/rosterwatch/depthsync/internal/notify"
	"github.com/rosterwatch/depthsync/internal/snapshot"
	"github.com/rosterwatch/depthsync/internal/store"
)

const (
	defaultBatchSize  = 100
	defaultBatchPause = 100 * time.Millisecond
)

// Options tunes a publish run.
type Options struct {
	BatchSize        int           // records per write batch; default 100
	BatchPause       time.Duration // pause between batches; default 100ms
	RatePerSec       float64       // per-record write pacing; 0 = unlimited
	DryRun           bool          // report the run without writing records or snapshot files
	SkipValidation   bool
	SkipSnapshot     bool
	SkipInvalidation bool
}

// Publisher persists a batch of resolved records.
type Publisher struct {
	store     store.Store
	snapshots *snapshot.Writer
	notifier  notify.Notifier
	opts      Options
	limiter   *rate.Limiter
}

// New creates a Publisher. A nil notifier disables cache invalidation.
func New(st store.Store, snapshots *snapshot.Writer, notifier notify.Notifier, opts Options) *Publisher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = defaultBatchPause
	}
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}

	return &Publisher{
		store:     st,
		snapshots: snapshots,
		notifier:  notifier,
		opts:      opts,
		limiter:   limiter,
	}
}

// NewPublicationID returns a unique identifier for one publish run,
// prefixed with a UTC timestamp so snapshot files sort chronologically.
func NewPublicationID() string {
	return fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102T150405Z"), uuid.New().String()[:8])
}

// Publish writes the batch for one season and week. Snapshot failure is
// fatal; cache invalidation and audit-log failures are surfaced as warnings
// only. A dry run skips record and snapshot writes but still reports the
// would-be snapshot path and appends the audit log. The returned result is
// always non-nil.
func (p *Publisher) Publish(ctx context.Context, season, week int, records []model.ResolvedRecord, stats model.ConflictStats, diffLog []model.DiffLogEntry) (*model.PublishResult, error) {
	start := time.Now()
	result := &model.PublishResult{PublicationID: NewPublicationID()}

	valid := records
	if !p.opts.SkipValidation {
		valid = p.prevalidate(season, week, records, result)
	}

	zap.L().Info("publisher: starting run",
		zap.String("publication_id", result.PublicationID),
		zap.Int("season", season),
		zap.Int("week", week),
		zap.Int("records", len(valid)),
		zap.Bool("dry_run", p.opts.DryRun),
	)

	// Dry runs skip the write step entirely, existence lookups included.
	if !p.opts.DryRun {
		writeStart := time.Now()
		p.writeBatches(ctx, season, week, valid, result)
		result.Metrics.DatabaseWriteMs = time.Since(writeStart).Milliseconds()
	}

	if !p.opts.SkipSnapshot {
		snapStart := time.Now()
		// The snapshot captures the full validated input set, failed writes
		// included, so the audit trail never loses records.
		snap := p.buildSnapshot(season, week, valid, stats, diffLog, result.PublicationID)
		if p.opts.DryRun {
			result.SnapshotPath = p.snapshots.Path(season, week, result.PublicationID)
			zap.L().Info("publisher: dry run, snapshot not written",
				zap.String("path", result.SnapshotPath),
				zap.Int("records", snap.TotalRecords),
			)
		} else {
			path, err := p.snapshots.Write(snap)
			result.Metrics.SnapshotWriteMs = time.Since(snapStart).Milliseconds()
			if err != nil {
				result.Errors = append(result.Errors, model.PublishError{
					ErrorType: model.ErrorSnapshot,
					Message:   err.Error(),
					Severity:  "error",
				})
				result.Metrics.TotalMs = time.Since(start).Milliseconds()
				p.appendAuditLog(ctx, season, week, len(records), result, time.Since(start))
				return result, eris.Wrap(err, "publisher: snapshot")
			}
			result.SnapshotPath = path
		}
	}

	if !p.opts.DryRun && !p.opts.SkipInvalidation {
		invStart := time.Now()
		err := p.notifier.Invalidate(ctx, notify.Invalidation{
			Season:        season,
			Week:          week,
			PublicationID: result.PublicationID,
			PublishedAt:   time.Now().UTC(),
		})
		result.Metrics.CacheInvalidationMs = time.Since(invStart).Milliseconds()
		if err != nil {
			// Stale caches are tolerable; a failed publish is not.
			zap.L().Warn("publisher: cache invalidation failed",
				zap.String("publication_id", result.PublicationID),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, model.PublishError{
				ErrorType: model.ErrorCacheInvalidation,
				Message:   err.Error(),
				Severity:  "warning",
			})
		}
	}

	if !p.opts.DryRun {
		if err := p.store.AppendDiffLog(ctx, result.PublicationID, season, week, diffLog); err != nil {
			zap.L().Warn("publisher: diff log write failed", zap.Error(err))
		}
	}

	result.Metrics.TotalMs = time.Since(start).Milliseconds()
	result.Success = result.RecordsFailed == 0 ||
		result.RecordsFailed < result.RecordsCreated+result.RecordsUpdated

	p.appendAuditLog(ctx, season, week, len(records), result, time.Since(start))

	zap.L().Info("publisher: run complete",
		zap.String("publication_id", result.PublicationID),
		zap.Bool("success", result.Success),
		zap.Int("created", result.RecordsCreated),
		zap.Int("updated", result.RecordsUpdated),
		zap.Int("failed", result.RecordsFailed),
		zap.Int64("total_ms", result.Metrics.TotalMs),
	)

	return result, nil
}

// prevalidate drops records that would corrupt the table: missing identity
// fields or a season/week that does not match the run.
func (p *Publisher) prevalidate(season, week int, records []model.ResolvedRecord, result *model.PublishResult) []model.ResolvedRecord {
	valid := make([]model.ResolvedRecord, 0, len(records))
	for _, rec := range records {
		switch {
		case rec.PlayerID == "" || rec.TeamID == "" || rec.Position == "":
			result.RecordsFailed++
			result.Errors = append(result.Errors, model.PublishError{
				PlayerID:  rec.PlayerID,
				ErrorType: model.ErrorValidation,
				Message:   "missing identity fields",
				Severity:  "error",
			})
		case rec.Season != season || rec.Week != week:
			result.RecordsFailed++
			result.Errors = append(result.Errors, model.PublishError{
				PlayerID:  rec.PlayerID,
				ErrorType: model.ErrorValidation,
				Message:   fmt.Sprintf("record is for %dW%d, publishing %dW%d", rec.Season, rec.Week, season, week),
				Severity:  "error",
			})
		default:
			valid = append(valid, rec)
		}
	}
	return valid
}

// writeBatches persists records in fixed-size batches. A failed existence
// lookup fails the whole batch but later batches still run.
func (p *Publisher) writeBatches(ctx context.Context, season, week int, records []model.ResolvedRecord, result *model.PublishResult) {
	for i := 0; i < len(records); i += p.opts.BatchSize {
		end := i + p.opts.BatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[i:end]

		playerIDs := make([]string, len(batch))
		for j, rec := range batch {
			playerIDs[j] = rec.PlayerID
		}

		existing, err := p.store.FindExisting(ctx, season, week, playerIDs)
		if err != nil {
			result.RecordsFailed += len(batch)
			result.Errors = append(result.Errors, model.PublishError{
				ErrorType: model.ErrorDatabaseWrite,
				Message:   fmt.Sprintf("existence lookup failed for batch of %d: %v", len(batch), err),
				Severity:  "error",
			})
			continue
		}

		for j := range batch {
			rec := &batch[j]
			rowID, exists := existing[rec.PlayerID]

			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					result.RecordsFailed++
					result.Errors = append(result.Errors, model.PublishError{
						PlayerID:  rec.PlayerID,
						ErrorType: model.ErrorDatabaseWrite,
						Message:   err.Error(),
						Severity:  "error",
					})
					continue
				}
			}

			if exists {
				err = p.store.UpdateRecord(ctx, rowID, rec)
			} else {
				_, err = p.store.CreateRecord(ctx, rec)
			}
			if err != nil {
				result.RecordsFailed++
				result.Errors = append(result.Errors, model.PublishError{
					PlayerID:  rec.PlayerID,
					ErrorType: model.ErrorDatabaseWrite,
					Message:   err.Error(),
					Severity:  "error",
				})
				zap.L().Error("publisher: record write failed",
					zap.String("player_id", rec.PlayerID),
					zap.Error(err),
				)
				continue
			}

			if exists {
				result.RecordsUpdated++
			} else {
				result.RecordsCreated++
			}
		}

		if end < len(records) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.opts.BatchPause):
			}
		}
	}
}

func (p *Publisher) buildSnapshot(season, week int, records []model.ResolvedRecord, stats model.ConflictStats, diffLog []model.DiffLogEntry, publicationID string) *model.DataSnapshot {
	return &model.DataSnapshot{
		SnapshotID:   uuid.New().String(),
		Season:       season,
		Week:         week,
		CreatedAt:    time.Now().UTC(),
		TotalRecords: len(records),
		DataSources:  uniqueSources(records),
		Records:      records,
		Metadata: model.SnapshotMetadata{
			PublicationID:        publicationID,
			ConflictStats:        stats,
			ResolutionLogSummary: resolutionSummary(records),
			DiffLogSummary:       diffSummary(diffLog),
		},
	}
}

func (p *Publisher) appendAuditLog(ctx context.Context, season, week, processed int, result *model.PublishResult, elapsed time.Duration) {
	status := "success"
	if result.RecordsFailed > 0 {
		status = "partial_failure"
	}
	operation := "publish"
	if p.opts.DryRun {
		operation = "dry_run"
	}

	entry := &model.IngestionLogEntry{
		PublicationID:    result.PublicationID,
		Season:           season,
		Week:             week,
		Operation:        operation,
		Status:           status,
		RecordsProcessed: processed,
		RecordsCreated:   result.RecordsCreated,
		RecordsUpdated:   result.RecordsUpdated,
		RecordsFailed:    result.RecordsFailed,
		DurationMs:       elapsed.Milliseconds(),
	}
	if err := p.store.AppendIngestionLog(ctx, entry); err != nil {
		zap.L().Warn("publisher: audit log write failed",
			zap.String("publication_id", result.PublicationID),
			zap.Error(err),
		)
	}
}

func uniqueSources(records []model.ResolvedRecord) []model.Source {
	seen := make(map[model.Source]bool)
	for _, rec := range records {
		seen[rec.Source] = true
	}
	sources := make([]model.Source, 0, len(seen))
	for s := range seen {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

// resolutionSummary counts winning sources across all resolution logs.
func resolutionSummary(records []model.ResolvedRecord) map[string]int {
	summary := make(map[string]int)
	for _, rec := range records {
		for _, entry := range rec.ResolutionLog {
			summary[string(entry.WinningSource)]++
		}
	}
	return summary
}

// diffSummary counts diff entries per change type.
func diffSummary(diffLog []model.DiffLogEntry) map[string]int {
	summary := make(map[string]int)
	for _, e := range diffLog {
		summary[string(e.ChangeType)]++
	}
	return summary
}

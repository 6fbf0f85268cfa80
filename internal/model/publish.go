package model

import "time"

// ErrorType categorizes a publish failure.
type ErrorType string

const (
	ErrorValidation        ErrorType = "validation"
	ErrorDatabaseWrite     ErrorType = "database_write"
	ErrorSnapshot          ErrorType = "snapshot"
	ErrorCacheInvalidation ErrorType = "cache_invalidation"
)

// PublishError is one typed failure surfaced on a PublishResult.
type PublishError struct {
	PlayerID  string    `json:"player_id,omitempty"`
	ErrorType ErrorType `json:"error_type"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"` // "error" or "warning"
}

// PublishMetrics holds per-phase durations for one publish run.
type PublishMetrics struct {
	TotalMs             int64 `json:"total_duration_ms"`
	DatabaseWriteMs     int64 `json:"database_write_ms"`
	SnapshotWriteMs     int64 `json:"snapshot_write_ms"`
	CacheInvalidationMs int64 `json:"cache_invalidation_ms"`
}

// PublishResult is the structured outcome of one publish run. Success is
// qualified: the run counts as successful when it made more forward progress
// than it lost, so callers must still inspect RecordsFailed and Errors.
type PublishResult struct {
	Success        bool           `json:"success"`
	RecordsCreated int            `json:"records_created"`
	RecordsUpdated int            `json:"records_updated"`
	RecordsFailed  int            `json:"records_failed"`
	SnapshotPath   string         `json:"snapshot_path,omitempty"`
	PublicationID  string         `json:"publication_id"`
	Errors         []PublishError `json:"errors,omitempty"`
	Metrics        PublishMetrics `json:"performance_metrics"`
}

// DataSnapshot is the immutable, versioned capture of one publish run. Once
// written its file is never overwritten or mutated.
type DataSnapshot struct {
	SnapshotID    string           `json:"snapshot_id"`
	Season        int              `json:"season"`
	Week          int              `json:"week"`
	CreatedAt     time.Time        `json:"created_at"`
	TotalRecords  int              `json:"total_records"`
	DataSources   []Source         `json:"data_sources"`
	SchemaVersion string           `json:"schema_version"`
	Records       []ResolvedRecord `json:"records"`
	Metadata      SnapshotMetadata `json:"metadata"`
}

// SnapshotMetadata carries run-level context alongside the record set.
type SnapshotMetadata struct {
	PublicationID        string         `json:"publication_id"`
	ConflictStats        ConflictStats  `json:"conflict_stats"`
	ResolutionLogSummary map[string]int `json:"resolution_log_summary,omitempty"`
	DiffLogSummary       map[string]int `json:"diff_log_summary,omitempty"`
}

// ConflictStats summarizes resolution work across a batch.
type ConflictStats struct {
	TotalConflicts         int     `json:"total_conflicts"`
	ResolvedConflicts      int     `json:"resolved_conflicts"`
	ManualOverridesApplied int     `json:"manual_overrides_applied"`
	AvgConfidence          float64 `json:"avg_confidence"`
}

// IngestionLogEntry is one audit row per pipeline run. Writes are best-effort
// but the row is attempted regardless of run outcome.
type IngestionLogEntry struct {
	ID               string        `json:"id"`
	PublicationID    string        `json:"publication_id"`
	Season           int           `json:"season"`
	Week             int           `json:"week"`
	Operation        string        `json:"operation"`
	Status           string        `json:"status"` // "success" or "partial_failure"
	RecordsProcessed int           `json:"records_processed"`
	RecordsCreated   int           `json:"records_created"`
	RecordsUpdated   int           `json:"records_updated"`
	RecordsFailed    int           `json:"records_failed"`
	ConflictStats    ConflictStats `json:"conflict_stats"`
	DurationMs       int64         `json:"duration_ms"`
	CreatedAt        time.Time     `json:"created_at"`
}

// ChangeType classifies a diff-log entry against the previous week.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeUpdated  ChangeType = "updated"
	ChangeNoChange ChangeType = "no_change"
)

// DiffLogEntry records one field-level change relative to the previously
// published record for the same player.
type DiffLogEntry struct {
	PlayerID   string     `json:"player_id"`
	FieldName  string     `json:"field_name"`
	ChangeType ChangeType `json:"change_type"`
	OldValue   any        `json:"old_value,omitempty"`
	NewValue   any        `json:"new_value"`
	Source     Source     `json:"source"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
}

package store

import (
	"context"

	"github.com/rosterwatch/depthsync/internal/model"
)

// RecordFilter specifies criteria for listing player status records.
type RecordFilter struct {
	Season   int    `json:"season,omitempty"`
	WeekFrom int    `json:"week_from,omitempty"`
	WeekTo   int    `json:"week_to,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// LogFilter specifies criteria for listing ingestion log entries.
type LogFilter struct {
	Season int    `json:"season,omitempty"`
	Week   int    `json:"week,omitempty"`
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the status pipeline.
type Store interface {
	// Player status records
	FindExisting(ctx context.Context, season, week int, playerIDs []string) (map[string]string, error)
	CreateRecord(ctx context.Context, rec *model.ResolvedRecord) (string, error)
	UpdateRecord(ctx context.Context, id string, rec *model.ResolvedRecord) error
	GetRecord(ctx context.Context, playerID string, season, week int) (*model.ResolvedRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.ResolvedRecord, error)

	// Manual overrides
	ListActiveOverrides(ctx context.Context, season int) ([]model.ManualOverride, error)
	ImportOverrides(ctx context.Context, overrides []model.ManualOverride) (int64, error)

	// Audit
	AppendIngestionLog(ctx context.Context, entry *model.IngestionLogEntry) error
	ListIngestionLog(ctx context.Context, filter LogFilter) ([]model.IngestionLogEntry, error)
	AppendDiffLog(ctx context.Context, publicationID string, season, week int, entries []model.DiffLogEntry) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

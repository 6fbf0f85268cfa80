package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rosterwatch/depthsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS player_status (
	id               TEXT PRIMARY KEY,
	player_id        TEXT NOT NULL,
	team_id          TEXT NOT NULL,
	position         TEXT NOT NULL,
	season           INTEGER NOT NULL,
	week             INTEGER NOT NULL,
	record           TEXT NOT NULL,
	source           TEXT NOT NULL,
	final_confidence REAL NOT NULL,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(player_id, season, week)
);

CREATE TABLE IF NOT EXISTS manual_overrides (
	id                TEXT PRIMARY KEY,
	player_id         TEXT NOT NULL,
	season            INTEGER NOT NULL,
	week              INTEGER NOT NULL DEFAULT 0,
	field_name        TEXT NOT NULL,
	override_value    TEXT NOT NULL,
	priority          INTEGER NOT NULL,
	admin_user_id     TEXT NOT NULL,
	reason            TEXT NOT NULL,
	effective_from    DATETIME NOT NULL,
	expires_at        DATETIME,
	is_active         INTEGER NOT NULL DEFAULT 1,
	validation_status TEXT NOT NULL DEFAULT 'PENDING',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ingestion_log (
	id                TEXT PRIMARY KEY,
	publication_id    TEXT NOT NULL,
	season            INTEGER NOT NULL,
	week              INTEGER NOT NULL,
	operation         TEXT NOT NULL,
	status            TEXT NOT NULL,
	records_processed INTEGER NOT NULL DEFAULT 0,
	records_created   INTEGER NOT NULL DEFAULT 0,
	records_updated   INTEGER NOT NULL DEFAULT 0,
	records_failed    INTEGER NOT NULL DEFAULT 0,
	conflict_stats    TEXT,
	duration_ms       INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS diff_log (
	id             TEXT PRIMARY KEY,
	publication_id TEXT NOT NULL,
	season         INTEGER NOT NULL,
	week           INTEGER NOT NULL,
	player_id      TEXT NOT NULL,
	field_name     TEXT NOT NULL,
	change_type    TEXT NOT NULL,
	old_value      TEXT,
	new_value      TEXT,
	source         TEXT NOT NULL,
	confidence     REAL NOT NULL,
	reasoning      TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_player_status_season_week ON player_status(season, week);
CREATE INDEX IF NOT EXISTS idx_player_status_player ON player_status(player_id);
CREATE INDEX IF NOT EXISTS idx_overrides_player_season ON manual_overrides(player_id, season);
CREATE INDEX IF NOT EXISTS idx_ingestion_log_season_week ON ingestion_log(season, week);
CREATE INDEX IF NOT EXISTS idx_diff_log_publication ON diff_log(publication_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindExisting(ctx context.Context, season, week int, playerIDs []string) (map[string]string, error) {
	existing := make(map[string]string, len(playerIDs))
	if len(playerIDs) == 0 {
		return existing, nil
	}

	placeholders := strings.Repeat("?,", len(playerIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{season, week}
	for _, id := range playerIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, id FROM player_status WHERE season = ? AND week = ? AND player_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find existing")
	}
	defer rows.Close()

	for rows.Next() {
		var playerID, id string
		if err := rows.Scan(&playerID, &id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan existing")
		}
		existing[playerID] = id
	}
	return existing, eris.Wrap(rows.Err(), "sqlite: find existing iterate")
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, rec *model.ResolvedRecord) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	rec.UpdatedAt = now

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO player_status (id, player_id, team_id, position, season, week, record, source, final_confidence, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.PlayerID, rec.TeamID, rec.Position, rec.Season, rec.Week,
		string(recordJSON), string(rec.Source), rec.FinalConfidence, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert record %s", rec.PlayerID)
	}
	return id, nil
}

func (s *SQLiteStore) UpdateRecord(ctx context.Context, id string, rec *model.ResolvedRecord) error {
	now := time.Now().UTC()
	rec.UpdatedAt = now

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE player_status SET team_id = ?, position = ?, record = ?, source = ?, final_confidence = ?, updated_at = ?
		 WHERE id = ?`,
		rec.TeamID, rec.Position, string(recordJSON), string(rec.Source), rec.FinalConfidence, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update record %s", id)
	}
	return checkRowsAffected(res, "record", id)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, playerID string, season, week int) (*model.ResolvedRecord, error) {
	var recordJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM player_status WHERE player_id = ? AND season = ? AND week = ?`,
		playerID, season, week,
	).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", playerID)
	}

	var rec model.ResolvedRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &rec, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ResolvedRecord, error) {
	query := `SELECT record FROM player_status WHERE 1=1`
	var args []any

	if filter.Season > 0 {
		query += ` AND season = ?`
		args = append(args, filter.Season)
	}
	if filter.WeekFrom > 0 {
		query += ` AND week >= ?`
		args = append(args, filter.WeekFrom)
	}
	if filter.WeekTo > 0 {
		query += ` AND week <= ?`
		args = append(args, filter.WeekTo)
	}
	if filter.PlayerID != "" {
		query += ` AND player_id = ?`
		args = append(args, filter.PlayerID)
	}
	query += ` ORDER BY season DESC, week DESC, player_id ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var records []model.ResolvedRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		var rec model.ResolvedRecord
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) ListActiveOverrides(ctx context.Context, season int) ([]model.ManualOverride, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, player_id, season, week, field_name, override_value, priority, admin_user_id, reason,
		        effective_from, expires_at, is_active, validation_status, created_at
		 FROM manual_overrides
		 WHERE season = ? AND is_active = 1 AND validation_status != ?
		 ORDER BY priority DESC, created_at DESC`,
		season, string(model.OverrideRejected),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list overrides")
	}
	defer rows.Close()

	var overrides []model.ManualOverride
	for rows.Next() {
		var o model.ManualOverride
		var valueJSON string
		var expiresAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.PlayerID, &o.Season, &o.Week, &o.FieldName, &valueJSON,
			&o.Priority, &o.AdminUserID, &o.Reason, &o.EffectiveFrom, &expiresAt,
			&o.IsActive, &o.ValidationStatus, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan override")
		}
		if err := json.Unmarshal([]byte(valueJSON), &o.OverrideValue); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal override value")
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			o.ExpiresAt = &t
		}
		overrides = append(overrides, o)
	}
	return overrides, eris.Wrap(rows.Err(), "sqlite: list overrides iterate")
}

func (s *SQLiteStore) ImportOverrides(ctx context.Context, overrides []model.ManualOverride) (int64, error) {
	if len(overrides) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import overrides begin tx")
	}
	defer tx.Rollback()

	var count int64
	for _, o := range overrides {
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		valueJSON, err := json.Marshal(o.OverrideValue)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal override value %s", o.ID)
		}
		var expiresAt any
		if o.ExpiresAt != nil {
			expiresAt = *o.ExpiresAt
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO manual_overrides
			 (id, player_id, season, week, field_name, override_value, priority, admin_user_id, reason,
			  effective_from, expires_at, is_active, validation_status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET
			   override_value = excluded.override_value, priority = excluded.priority,
			   expires_at = excluded.expires_at, is_active = excluded.is_active,
			   validation_status = excluded.validation_status`,
			o.ID, o.PlayerID, o.Season, o.Week, o.FieldName, string(valueJSON), o.Priority,
			o.AdminUserID, o.Reason, o.EffectiveFrom, expiresAt, o.IsActive,
			string(o.ValidationStatus), o.CreatedAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert override %s", o.ID)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import overrides commit")
	}
	return count, nil
}

func (s *SQLiteStore) AppendIngestionLog(ctx context.Context, entry *model.IngestionLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	statsJSON, err := json.Marshal(entry.ConflictStats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal conflict stats")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ingestion_log
		 (id, publication_id, season, week, operation, status, records_processed, records_created,
		  records_updated, records_failed, conflict_stats, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.PublicationID, entry.Season, entry.Week, entry.Operation, entry.Status,
		entry.RecordsProcessed, entry.RecordsCreated, entry.RecordsUpdated, entry.RecordsFailed,
		string(statsJSON), entry.DurationMs, entry.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append ingestion log")
}

func (s *SQLiteStore) ListIngestionLog(ctx context.Context, filter LogFilter) ([]model.IngestionLogEntry, error) {
	query := `SELECT id, publication_id, season, week, operation, status, records_processed,
	                 records_created, records_updated, records_failed, conflict_stats, duration_ms, created_at
	          FROM ingestion_log WHERE 1=1`
	var args []any

	if filter.Season > 0 {
		query += ` AND season = ?`
		args = append(args, filter.Season)
	}
	if filter.Week > 0 {
		query += ` AND week = ?`
		args = append(args, filter.Week)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ingestion log")
	}
	defer rows.Close()

	var entries []model.IngestionLogEntry
	for rows.Next() {
		var e model.IngestionLogEntry
		var statsJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.PublicationID, &e.Season, &e.Week, &e.Operation, &e.Status,
			&e.RecordsProcessed, &e.RecordsCreated, &e.RecordsUpdated, &e.RecordsFailed,
			&statsJSON, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ingestion log")
		}
		if statsJSON.Valid {
			if err := json.Unmarshal([]byte(statsJSON.String), &e.ConflictStats); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal conflict stats")
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list ingestion log iterate")
}

func (s *SQLiteStore) AppendDiffLog(ctx context.Context, publicationID string, season, week int, entries []model.DiffLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: append diff log begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, e := range entries {
		oldJSON, err := json.Marshal(e.OldValue)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal old value")
		}
		newJSON, err := json.Marshal(e.NewValue)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal new value")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO diff_log
			 (id, publication_id, season, week, player_id, field_name, change_type, old_value, new_value,
			  source, confidence, reasoning, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), publicationID, season, week, e.PlayerID, e.FieldName,
			string(e.ChangeType), string(oldJSON), string(newJSON), string(e.Source),
			e.Confidence, e.Reasoning, now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert diff log for %s", e.PlayerID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: append diff log commit")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rosterwatch/depthsync/internal/db"
	"github.com/rosterwatch/depthsync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot write path.
var preparedStatements = map[string]string{
	"insert_record":  `INSERT INTO player_status (id, player_id, team_id, position, season, week, record, source, final_confidence, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"update_record":  `UPDATE player_status SET team_id = $1, position = $2, record = $3, source = $4, final_confidence = $5, updated_at = $6 WHERE id = $7`,
	"get_record":     `SELECT record FROM player_status WHERE player_id = $1 AND season = $2 AND week = $3`,
	"find_existing":  `SELECT player_id, id FROM player_status WHERE season = $1 AND week = $2 AND player_id = ANY($3)`,
	"insert_log":     `INSERT INTO ingestion_log (id, publication_id, season, week, operation, status, records_processed, records_created, records_updated, records_failed, conflict_stats, duration_ms, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
	"list_overrides": `SELECT id, player_id, season, week, field_name, override_value, priority, admin_user_id, reason, effective_from, expires_at, is_active, validation_status, created_at FROM manual_overrides WHERE season = $1 AND is_active AND validation_status != $2 ORDER BY priority DESC, created_at DESC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., run statistics).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS player_status (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	player_id        TEXT NOT NULL,
	team_id          TEXT NOT NULL,
	position         TEXT NOT NULL,
	season           INTEGER NOT NULL,
	week             INTEGER NOT NULL,
	record           JSONB NOT NULL,
	source           TEXT NOT NULL,
	final_confidence DOUBLE PRECISION NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(player_id, season, week)
);

CREATE TABLE IF NOT EXISTS manual_overrides (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	player_id         TEXT NOT NULL,
	season            INTEGER NOT NULL,
	week              INTEGER NOT NULL DEFAULT 0,
	field_name        TEXT NOT NULL,
	override_value    JSONB NOT NULL,
	priority          INTEGER NOT NULL,
	admin_user_id     TEXT NOT NULL,
	reason            TEXT NOT NULL,
	effective_from    TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ,
	is_active         BOOLEAN NOT NULL DEFAULT true,
	validation_status TEXT NOT NULL DEFAULT 'PENDING',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ingestion_log (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	publication_id    TEXT NOT NULL,
	season            INTEGER NOT NULL,
	week              INTEGER NOT NULL,
	operation         TEXT NOT NULL,
	status            TEXT NOT NULL,
	records_processed INTEGER NOT NULL DEFAULT 0,
	records_created   INTEGER NOT NULL DEFAULT 0,
	records_updated   INTEGER NOT NULL DEFAULT 0,
	records_failed    INTEGER NOT NULL DEFAULT 0,
	conflict_stats    JSONB,
	duration_ms       BIGINT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS diff_log (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	publication_id TEXT NOT NULL,
	season         INTEGER NOT NULL,
	week           INTEGER NOT NULL,
	player_id      TEXT NOT NULL,
	field_name     TEXT NOT NULL,
	change_type    TEXT NOT NULL,
	old_value      JSONB,
	new_value      JSONB,
	source         TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	reasoning      TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_player_status_season_week ON player_status(season, week);
CREATE INDEX IF NOT EXISTS idx_player_status_player ON player_status(player_id);
CREATE INDEX IF NOT EXISTS idx_overrides_player_season ON manual_overrides(player_id, season);
CREATE INDEX IF NOT EXISTS idx_ingestion_log_season_week ON ingestion_log(season, week);
CREATE INDEX IF NOT EXISTS idx_diff_log_publication ON diff_log(publication_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FindExisting(ctx context.Context, season, week int, playerIDs []string) (map[string]string, error) {
	existing := make(map[string]string, len(playerIDs))
	if len(playerIDs) == 0 {
		return existing, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT player_id, id FROM player_status WHERE season = $1 AND week = $2 AND player_id = ANY($3)`,
		season, week, playerIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find existing")
	}
	defer rows.Close()

	for rows.Next() {
		var playerID, id string
		if err := rows.Scan(&playerID, &id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan existing")
		}
		existing[playerID] = id
	}
	return existing, eris.Wrap(rows.Err(), "postgres: find existing iterate")
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec *model.ResolvedRecord) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	rec.UpdatedAt = now

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal record")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO player_status (id, player_id, team_id, position, season, week, record, source, final_confidence, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, rec.PlayerID, rec.TeamID, rec.Position, rec.Season, rec.Week,
		recordJSON, string(rec.Source), rec.FinalConfidence, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert record %s", rec.PlayerID)
	}
	return id, nil
}

func (s *PostgresStore) UpdateRecord(ctx context.Context, id string, rec *model.ResolvedRecord) error {
	now := time.Now().UTC()
	rec.UpdatedAt = now

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE player_status SET team_id = $1, position = $2, record = $3, source = $4, final_confidence = $5, updated_at = $6
		 WHERE id = $7`,
		rec.TeamID, rec.Position, recordJSON, string(rec.Source), rec.FinalConfidence, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update record %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("record not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) GetRecord(ctx context.Context, playerID string, season, week int) (*model.ResolvedRecord, error) {
	var recordJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM player_status WHERE player_id = $1 AND season = $2 AND week = $3`,
		playerID, season, week,
	).Scan(&recordJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get record %s", playerID)
	}

	var rec model.ResolvedRecord
	if err := json.Unmarshal(recordJSON, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal record")
	}
	return &rec, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ResolvedRecord, error) {
	query := `SELECT record FROM player_status WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Season > 0 {
		query += fmt.Sprintf(` AND season = $%d`, argIdx)
		args = append(args, filter.Season)
		argIdx++
	}
	if filter.WeekFrom > 0 {
		query += fmt.Sprintf(` AND week >= $%d`, argIdx)
		args = append(args, filter.WeekFrom)
		argIdx++
	}
	if filter.WeekTo > 0 {
		query += fmt.Sprintf(` AND week <= $%d`, argIdx)
		args = append(args, filter.WeekTo)
		argIdx++
	}
	if filter.PlayerID != "" {
		query += fmt.Sprintf(` AND player_id = $%d`, argIdx)
		args = append(args, filter.PlayerID)
		argIdx++
	}
	query += ` ORDER BY season DESC, week DESC, player_id ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var records []model.ResolvedRecord
	for rows.Next() {
		var recordJSON []byte
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		var rec model.ResolvedRecord
		if err := json.Unmarshal(recordJSON, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) ListActiveOverrides(ctx context.Context, season int) ([]model.ManualOverride, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player_id, season, week, field_name, override_value, priority, admin_user_id, reason,
		        effective_from, expires_at, is_active, validation_status, created_at
		 FROM manual_overrides
		 WHERE season = $1 AND is_active AND validation_status != $2
		 ORDER BY priority DESC, created_at DESC`,
		season, string(model.OverrideRejected),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list overrides")
	}
	defer rows.Close()

	var overrides []model.ManualOverride
	for rows.Next() {
		var o model.ManualOverride
		var valueJSON []byte
		var expiresAt *time.Time
		if err := rows.Scan(&o.ID, &o.PlayerID, &o.Season, &o.Week, &o.FieldName, &valueJSON,
			&o.Priority, &o.AdminUserID, &o.Reason, &o.EffectiveFrom, &expiresAt,
			&o.IsActive, &o.ValidationStatus, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan override")
		}
		if err := json.Unmarshal(valueJSON, &o.OverrideValue); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal override value")
		}
		o.ExpiresAt = expiresAt
		overrides = append(overrides, o)
	}
	return overrides, eris.Wrap(rows.Err(), "postgres: list overrides iterate")
}

func (s *PostgresStore) ImportOverrides(ctx context.Context, overrides []model.ManualOverride) (int64, error) {
	if len(overrides) == 0 {
		return 0, nil
	}

	columns := []string{
		"id", "player_id", "season", "week", "field_name", "override_value", "priority",
		"admin_user_id", "reason", "effective_from", "expires_at", "is_active",
		"validation_status", "created_at",
	}
	rows := make([][]any, 0, len(overrides))
	for _, o := range overrides {
		if o.ID == "" {
			o.ID = uuid.New().String()
		}
		valueJSON, err := json.Marshal(o.OverrideValue)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal override value %s", o.ID)
		}
		var expiresAt any
		if o.ExpiresAt != nil {
			expiresAt = *o.ExpiresAt
		}
		rows = append(rows, []any{
			o.ID, o.PlayerID, o.Season, o.Week, o.FieldName, valueJSON, o.Priority,
			o.AdminUserID, o.Reason, o.EffectiveFrom, expiresAt, o.IsActive,
			string(o.ValidationStatus), o.CreatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "manual_overrides",
		Columns:      columns,
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: import overrides")
}

func (s *PostgresStore) AppendIngestionLog(ctx context.Context, entry *model.IngestionLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	statsJSON, err := json.Marshal(entry.ConflictStats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal conflict stats")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ingestion_log
		 (id, publication_id, season, week, operation, status, records_processed, records_created,
		  records_updated, records_failed, conflict_stats, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID, entry.PublicationID, entry.Season, entry.Week, entry.Operation, entry.Status,
		entry.RecordsProcessed, entry.RecordsCreated, entry.RecordsUpdated, entry.RecordsFailed,
		statsJSON, entry.DurationMs, entry.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append ingestion log")
}

func (s *PostgresStore) ListIngestionLog(ctx context.Context, filter LogFilter) ([]model.IngestionLogEntry, error) {
	query := `SELECT id, publication_id, season, week, operation, status, records_processed,
	                 records_created, records_updated, records_failed, conflict_stats, duration_ms, created_at
	          FROM ingestion_log WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Season > 0 {
		query += fmt.Sprintf(` AND season = $%d`, argIdx)
		args = append(args, filter.Season)
		argIdx++
	}
	if filter.Week > 0 {
		query += fmt.Sprintf(` AND week = $%d`, argIdx)
		args = append(args, filter.Week)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, filter.Status)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ingestion log")
	}
	defer rows.Close()

	var entries []model.IngestionLogEntry
	for rows.Next() {
		var e model.IngestionLogEntry
		var statsJSON []byte
		if err := rows.Scan(&e.ID, &e.PublicationID, &e.Season, &e.Week, &e.Operation, &e.Status,
			&e.RecordsProcessed, &e.RecordsCreated, &e.RecordsUpdated, &e.RecordsFailed,
			&statsJSON, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ingestion log")
		}
		if len(statsJSON) > 0 {
			if err := json.Unmarshal(statsJSON, &e.ConflictStats); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal conflict stats")
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list ingestion log iterate")
}

func (s *PostgresStore) AppendDiffLog(ctx context.Context, publicationID string, season, week int, entries []model.DiffLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	columns := []string{
		"id", "publication_id", "season", "week", "player_id", "field_name", "change_type",
		"old_value", "new_value", "source", "confidence", "reasoning", "created_at",
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		oldJSON, err := json.Marshal(e.OldValue)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal old value")
		}
		newJSON, err := json.Marshal(e.NewValue)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal new value")
		}
		rows = append(rows, []any{
			uuid.New().String(), publicationID, season, week, e.PlayerID, e.FieldName,
			string(e.ChangeType), oldJSON, newJSON, string(e.Source), e.Confidence,
			e.Reasoning, now,
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "diff_log", columns, rows)
	return eris.Wrap(err, "postgres: append diff log")
}

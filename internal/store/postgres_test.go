package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterwatch/depthsync/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetRecord_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT record FROM player_status`).
		WithArgs("nonexistent-player", 2025, 3).
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetRecord(context.Background(), "nonexistent-player", 2025, 3)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRecord_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	recordJSON := []byte(`{"player_id":"player-1","team_id":"UGA","position":"RB","season":2025,"week":3,"depth_chart_rank":1}`)
	mock.ExpectQuery(`SELECT record FROM player_status`).
		WithArgs("player-1", 2025, 3).
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(recordJSON))

	rec, err := s.GetRecord(context.Background(), "player-1", 2025, 3)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "UGA", rec.TeamID)
	assert.Equal(t, 1, rec.DepthChartRank)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindExisting(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT player_id, id FROM player_status`).
		WithArgs(2025, 3, []string{"player-1", "player-2"}).
		WillReturnRows(pgxmock.NewRows([]string{"player_id", "id"}).AddRow("player-1", "row-1"))

	existing, err := s.FindExisting(context.Background(), 2025, 3, []string{"player-1", "player-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"player-1": "row-1"}, existing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindExisting_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	existing, err := s.FindExisting(context.Background(), 2025, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestPostgresStore_CreateRecord(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO player_status`).
		WithArgs(pgxmock.AnyArg(), "player-1", "UGA", "RB", 2025, 3,
			pgxmock.AnyArg(), "team_notes", 0.9, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.CreateRecord(context.Background(), testRecord("player-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRecord_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE player_status`).
		WithArgs("UGA", "RB", pgxmock.AnyArg(), "team_notes", 0.9, pgxmock.AnyArg(), "missing-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRecord(context.Background(), "missing-id", testRecord("player-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendIngestionLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO ingestion_log`).
		WithArgs(pgxmock.AnyArg(), "pub-1", 2025, 3, "publish", "success",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry := &model.IngestionLogEntry{
		PublicationID: "pub-1",
		Season:        2025,
		Week:          3,
		Operation:     "publish",
		Status:        "success",
	}
	require.NoError(t, s.AppendIngestionLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendDiffLog_UsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"diff_log"}, []string{
		"id", "publication_id", "season", "week", "player_id", "field_name", "change_type",
		"old_value", "new_value", "source", "confidence", "reasoning", "created_at",
	}).WillReturnResult(1)

	err := s.AppendDiffLog(context.Background(), "pub-1", 2025, 3, []model.DiffLogEntry{
		{
			PlayerID:   "player-1",
			FieldName:  "starter_prob",
			ChangeType: model.ChangeUpdated,
			OldValue:   0.4,
			NewValue:   0.8,
			Source:     model.SourceVendorESPN,
			Confidence: 0.85,
			Reasoning:  "starter_prob changed from 0.4 to 0.8",
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendDiffLog_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)
	require.NoError(t, s.AppendDiffLog(context.Background(), "pub-1", 2025, 3, nil))
}

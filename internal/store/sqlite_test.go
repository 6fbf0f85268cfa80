package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterwatch/depthsync/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRecord(playerID string) *model.ResolvedRecord {
	return &model.ResolvedRecord{
		PlayerID:        playerID,
		TeamID:          "UGA",
		Position:        "RB",
		Season:          2025,
		Week:            3,
		DepthChartRank:  1,
		StarterProb:     0.85,
		Usage1wSnapPct:  0.72,
		AsOf:            time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC),
		Source:          model.SourceTeamNotes,
		FinalConfidence: 0.9,
	}
}

// --- Player status records ---

func TestSQLite_CreateAndGetRecord(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := testRecord("player-1")
	id, err := st.CreateRecord(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := st.GetRecord(ctx, "player-1", 2025, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "UGA", got.TeamID)
	assert.Equal(t, 1, got.DepthChartRank)
	assert.InDelta(t, 0.85, got.StarterProb, 1e-9)
	assert.Equal(t, model.SourceTeamNotes, got.Source)
}

func TestSQLite_GetRecord_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetRecord(context.Background(), "nonexistent", 2025, 3)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_CreateRecord_DuplicateKey(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateRecord(ctx, testRecord("player-1"))
	require.NoError(t, err)

	_, err = st.CreateRecord(ctx, testRecord("player-1"))
	require.Error(t, err)
}

func TestSQLite_UpdateRecord(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := testRecord("player-1")
	id, err := st.CreateRecord(ctx, rec)
	require.NoError(t, err)

	rec.DepthChartRank = 2
	rec.StarterProb = 0.3
	require.NoError(t, st.UpdateRecord(ctx, id, rec))

	got, err := st.GetRecord(ctx, "player-1", 2025, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.DepthChartRank)
	assert.InDelta(t, 0.3, got.StarterProb, 1e-9)
}

func TestSQLite_UpdateRecord_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateRecord(context.Background(), "missing-id", testRecord("player-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_FindExisting(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id1, err := st.CreateRecord(ctx, testRecord("player-1"))
	require.NoError(t, err)
	_, err = st.CreateRecord(ctx, testRecord("player-2"))
	require.NoError(t, err)

	existing, err := st.FindExisting(ctx, 2025, 3, []string{"player-1", "player-3"})
	require.NoError(t, err)
	assert.Len(t, existing, 1)
	assert.Equal(t, id1, existing["player-1"])
}

func TestSQLite_FindExisting_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	existing, err := st.FindExisting(context.Background(), 2025, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, existing)
}

func TestSQLite_ListRecords_SeasonWeekRange(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for week := 1; week <= 4; week++ {
		rec := testRecord("player-1")
		rec.Week = week
		_, err := st.CreateRecord(ctx, rec)
		require.NoError(t, err)
	}

	records, err := st.ListRecords(ctx, RecordFilter{Season: 2025, WeekFrom: 2, WeekTo: 3})
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Most recent week first.
	assert.Equal(t, 3, records[0].Week)
	assert.Equal(t, 2, records[1].Week)
}

// --- Manual overrides ---

func testOverride(id, playerID string, priority int) model.ManualOverride {
	return model.ManualOverride{
		ID:               id,
		PlayerID:         playerID,
		Season:           2025,
		Week:             3,
		FieldName:        "depth_chart_rank",
		OverrideValue:    float64(1),
		Priority:         priority,
		AdminUserID:      "admin-1",
		Reason:           "coach confirmed starter",
		EffectiveFrom:    time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		IsActive:         true,
		ValidationStatus: model.OverrideApproved,
		CreatedAt:        time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestSQLite_ImportAndListOverrides(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.ImportOverrides(ctx, []model.ManualOverride{
		testOverride("ov-1", "player-1", 100),
		testOverride("ov-2", "player-2", 90),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	overrides, err := st.ListActiveOverrides(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	// Highest priority first.
	assert.Equal(t, "ov-1", overrides[0].ID)
	assert.Equal(t, float64(1), overrides[0].OverrideValue)
}

func TestSQLite_ListActiveOverrides_ExcludesRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rejected := testOverride("ov-rej", "player-1", 100)
	rejected.ValidationStatus = model.OverrideRejected
	inactive := testOverride("ov-off", "player-2", 90)
	inactive.IsActive = false

	_, err := st.ImportOverrides(ctx, []model.ManualOverride{
		rejected, inactive, testOverride("ov-ok", "player-3", 80),
	})
	require.NoError(t, err)

	overrides, err := st.ListActiveOverrides(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, "ov-ok", overrides[0].ID)
}

func TestSQLite_ImportOverrides_UpsertsByID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.ImportOverrides(ctx, []model.ManualOverride{testOverride("ov-1", "player-1", 50)})
	require.NoError(t, err)

	updated := testOverride("ov-1", "player-1", 120)
	_, err = st.ImportOverrides(ctx, []model.ManualOverride{updated})
	require.NoError(t, err)

	overrides, err := st.ListActiveOverrides(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, 120, overrides[0].Priority)
}

// --- Audit log ---

func TestSQLite_IngestionLog_AppendAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	entry := &model.IngestionLogEntry{
		PublicationID:    "pub-1",
		Season:           2025,
		Week:             3,
		Operation:        "publish",
		Status:           "success",
		RecordsProcessed: 10,
		RecordsCreated:   7,
		RecordsUpdated:   3,
		ConflictStats:    model.ConflictStats{TotalConflicts: 4, ResolvedConflicts: 4, AvgConfidence: 0.88},
		DurationMs:       1200,
	}
	require.NoError(t, st.AppendIngestionLog(ctx, entry))
	assert.NotEmpty(t, entry.ID)

	entries, err := st.ListIngestionLog(ctx, LogFilter{Season: 2025, Week: 3})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pub-1", entries[0].PublicationID)
	assert.Equal(t, 7, entries[0].RecordsCreated)
	assert.InDelta(t, 0.88, entries[0].ConflictStats.AvgConfidence, 1e-9)
}

func TestSQLite_IngestionLog_FilterByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.AppendIngestionLog(ctx, &model.IngestionLogEntry{
		PublicationID: "pub-1", Season: 2025, Week: 3, Operation: "publish", Status: "success",
	}))
	require.NoError(t, st.AppendIngestionLog(ctx, &model.IngestionLogEntry{
		PublicationID: "pub-2", Season: 2025, Week: 3, Operation: "publish", Status: "partial_failure",
	}))

	entries, err := st.ListIngestionLog(ctx, LogFilter{Status: "partial_failure"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pub-2", entries[0].PublicationID)
}

func TestSQLite_AppendDiffLog(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.AppendDiffLog(ctx, "pub-1", 2025, 3, []model.DiffLogEntry{
		{
			PlayerID:   "player-1",
			FieldName:  "depth_chart_rank",
			ChangeType: model.ChangeUpdated,
			OldValue:   float64(2),
			NewValue:   float64(1),
			Source:     model.SourceTeamNotes,
			Confidence: 0.9,
			Reasoning:  "depth_chart_rank changed from 2 to 1",
		},
	})
	require.NoError(t, err)

	// Empty append is a no-op.
	require.NoError(t, st.AppendDiffLog(ctx, "pub-1", 2025, 3, nil))
}

package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterwatch/depthsync/internal/model"
)

func testSnapshot(pubID string) *model.DataSnapshot {
	return &model.DataSnapshot{
		SnapshotID:   "snap-" + pubID,
		Season:       2025,
		Week:         3,
		CreatedAt:    time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC),
		TotalRecords: 1,
		DataSources:  []model.Source{model.SourceTeamNotes},
		Records: []model.ResolvedRecord{
			{PlayerID: "player-1", TeamID: "UGA", Position: "RB", Season: 2025, Week: 3},
		},
		Metadata: model.SnapshotMetadata{PublicationID: pubID},
	}
}

func TestWriter_WriteAndLoad(t *testing.T) {
	w := NewWriter(t.TempDir())

	path, err := w.Write(testSnapshot("pub-1"))
	require.NoError(t, err)
	assert.Equal(t, w.Path(2025, 3, "pub-1"), path)
	assert.Contains(t, path, filepath.Join("2025", "week-3", "2025W3_pub-1.json"))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "snap-pub-1", loaded.SnapshotID)
	require.Len(t, loaded.Records, 1)
	assert.Equal(t, "player-1", loaded.Records[0].PlayerID)
	assert.Equal(t, SchemaVersion, loaded.SchemaVersion)
}

func TestWriter_RefusesOverwrite(t *testing.T) {
	w := NewWriter(t.TempDir())

	path, err := w.Write(testSnapshot("pub-1"))
	require.NoError(t, err)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = w.Write(testSnapshot("pub-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// Original content untouched.
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestWriter_RepeatPublishGetsNewFile(t *testing.T) {
	w := NewWriter(t.TempDir())

	p1, err := w.Write(testSnapshot("pub-1"))
	require.NoError(t, err)
	p2, err := w.Write(testSnapshot("pub-2"))
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	paths, err := w.List(2025, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{p1, p2}, paths)
}

func TestWriter_List_MissingDir(t *testing.T) {
	w := NewWriter(t.TempDir())

	paths, err := w.List(2024, 1)
	require.NoError(t, err)
	assert.Nil(t, paths)
}

func TestWriter_NoTempFilesLeftBehind(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base)

	path, err := w.Write(testSnapshot("pub-1"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

// Package snapshot writes immutable, versioned JSON captures of each
// publish run. A snapshot file is written once and never modified; repeat
// publishes for the same season and week produce new files under new
// publication IDs.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rosterwatch/depthsync/internal/model"
)

// SchemaVersion is stamped into every snapshot so readers can detect
// format changes.
const SchemaVersion = "2.1"

// Writer persists snapshots under a base directory.
type Writer struct {
	baseDir string
}

// NewWriter returns a Writer rooted at baseDir.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Path returns the snapshot file path for a publication, relative to the
// writer's base directory: {season}/week-{week}/{season}W{week}_{pubID}.json.
func (w *Writer) Path(season, week int, publicationID string) string {
	return filepath.Join(
		w.baseDir,
		fmt.Sprintf("%d", season),
		fmt.Sprintf("week-%d", week),
		fmt.Sprintf("%dW%d_%s.json", season, week, publicationID),
	)
}

// Write persists the snapshot and returns its path. The write is atomic
// (temp file then rename) and refuses to replace an existing file, which is
// what makes snapshots immutable at the filesystem level.
func (w *Writer) Write(snap *model.DataSnapshot) (string, error) {
	if snap.SchemaVersion == "" {
		snap.SchemaVersion = SchemaVersion
	}

	path := w.Path(snap.Season, snap.Week, snap.Metadata.PublicationID)
	if _, err := os.Stat(path); err == nil {
		return "", eris.Errorf("snapshot: %s already exists", path)
	} else if !os.IsNotExist(err) {
		return "", eris.Wrapf(err, "snapshot: stat %s", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "snapshot: create directory %s", dir)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "snapshot: marshal")
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return "", eris.Wrap(err, "snapshot: create temp file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", eris.Wrapf(err, "snapshot: write %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", eris.Wrapf(err, "snapshot: close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", eris.Wrapf(err, "snapshot: rename to %s", path)
	}

	zap.L().Info("snapshot: written",
		zap.String("path", path),
		zap.Int("records", snap.TotalRecords),
		zap.String("publication_id", snap.Metadata.PublicationID),
	)
	return path, nil
}

// Load reads a snapshot file back into memory.
func Load(path string) (*model.DataSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", path)
	}
	var snap model.DataSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrapf(err, "snapshot: unmarshal %s", path)
	}
	return &snap, nil
}

// List returns the snapshot file paths for a season and week, oldest first.
func (w *Writer) List(season, week int) ([]string, error) {
	dir := filepath.Join(w.baseDir, fmt.Sprintf("%d", season), fmt.Sprintf("week-%d", week))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: list %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

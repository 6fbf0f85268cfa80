package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/rosterwatch/depthsync/internal/model"
)

// FileSource reads observation dumps from a directory tree laid out as
// {root}/{season}/week-{week}/*.json, each file holding a JSON array of
// observations. Vendor exports and scraper output land here.
type FileSource struct {
	root string
}

// NewFile returns a FileSource rooted at the given directory.
func NewFile(root string) *FileSource {
	return &FileSource{root: root}
}

func (s *FileSource) Name() string { return "file:" + s.root }

func (s *FileSource) Fetch(ctx context.Context, season, week int) ([]model.FieldObservation, error) {
	dir := filepath.Join(s.root, fmt.Sprintf("%d", season), fmt.Sprintf("week-%d", week))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "source: read dir %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var observations []model.FieldObservation
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "source: read %s", path)
		}
		var batch []model.FieldObservation
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, eris.Wrapf(err, "source: parse %s", path)
		}
		observations = append(observations, batch...)
	}
	return observations, nil
}

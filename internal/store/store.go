// Package store persists the collected dataset: two CSV tables (activities,
// kudos) and a JSON progress-metadata document, all living in one data
// directory.
//
// The files are the external interface of the collector — other tooling
// reads them directly — so the format is deliberately boring: header row,
// one record per line, empty cell for a null statistic. Loading a missing
// file yields an empty dataset; that is the normal first-run condition, not
// an error.
//
// The store is single-process by design. Saves rewrite whole files, so two
// collectors pointed at the same directory would race; the operator must
// serialize runs.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/kudoscope/internal/model"
)

// Store is the read/write interface over the cached dataset. The collector
// owns all writes; the analyzer and the report server only read.
type Store interface {
	LoadActivities() ([]model.Activity, error)
	SaveActivities([]model.Activity) error
	LoadKudos() ([]model.KudosRecord, error)
	SaveKudos([]model.KudosRecord) error
	LoadMetadata() (model.Metadata, error)
	SaveMetadata(model.Metadata) error
}

const (
	activitiesFile = "activities.csv"
	kudosFile      = "kudos.csv"
	metadataFile   = "collection_metadata.json"
)

// Dir is the CSV+JSON implementation of Store, rooted at a data directory.
type Dir struct {
	dir string
}

// New creates the data directory if needed and returns a store over it.
func New(dir string) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
	}
	return &Dir{dir: dir}, nil
}

func (d *Dir) activitiesPath() string { return filepath.Join(d.dir, activitiesFile) }
func (d *Dir) kudosPath() string      { return filepath.Join(d.dir, kudosFile) }
func (d *Dir) metadataPath() string   { return filepath.Join(d.dir, metadataFile) }

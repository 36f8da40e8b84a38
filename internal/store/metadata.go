package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sakif/kudoscope/internal/model"
)

// LoadMetadata reads the collection-progress document, or returns first-run
// defaults when it does not exist yet.
func (d *Dir) LoadMetadata() (model.Metadata, error) {
	data, err := os.ReadFile(d.metadataPath())
	if os.IsNotExist(err) {
		return model.NewMetadata(), nil
	}
	if err != nil {
		return model.Metadata{}, fmt.Errorf("reading metadata: %w", err)
	}

	meta := model.NewMetadata()
	if err := json.Unmarshal(data, &meta); err != nil {
		return model.Metadata{}, fmt.Errorf("parsing metadata: %w", err)
	}
	return meta, nil
}

// SaveMetadata rewrites the progress document. Indented so a human can
// eyeball collection state without tooling.
func (d *Dir) SaveMetadata(meta model.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(d.metadataPath(), data, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

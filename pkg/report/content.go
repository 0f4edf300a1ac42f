// Package report serializes the accumulated distribution entries: the
// machine-readable content mapping consumed by downstream auditing, and the
// third-party license attribution report.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"distkit/pkg/dist"
)

// ContentRecord is one row of the content mapping.
type ContentRecord struct {
	Path       string `json:"path"`
	Type       string `json:"type"`
	Provenance string `json:"provenance"`
	PackMode   string `json:"packMode,omitempty"`
}

// ContentMapping is the persisted content-mapping.json document.
type ContentMapping struct {
	BuildNumber string          `json:"buildNumber"`
	Records     []ContentRecord `json:"records"`
}

// Records converts sorted entries to mapping rows.
func Records(entries []dist.Entry) []ContentRecord {
	records := make([]ContentRecord, 0, len(entries))
	for _, e := range entries {
		rec := ContentRecord{
			Path:       e.OutputPath(),
			Type:       e.Type(),
			Provenance: e.Provenance(),
		}
		if ple, ok := e.(dist.ProjectLibraryEntry); ok {
			rec.PackMode = ple.PackMode
		}
		records = append(records, rec)
	}
	return records
}

// WriteContentMapping writes content-mapping.json for the whole run.
func WriteContentMapping(path, buildNumber string, entries []dist.Entry) error {
	mapping := ContentMapping{
		BuildNumber: buildNumber,
		Records:     Records(entries),
	}
	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding content mapping: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing content mapping: %w", err)
	}
	return nil
}

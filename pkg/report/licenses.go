package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"

	"distkit/pkg/dist"
	"distkit/pkg/project"
)

// LicenseRecord is one attributed third-party library actually included in
// the distribution.
type LicenseRecord struct {
	Name       string `json:"name"`
	Version    string `json:"version,omitempty"`
	License    string `json:"license"`
	LicenseURL string `json:"licenseUrl,omitempty"`
}

var licenseHTML = template.Must(template.New("licenses").Parse(`<!DOCTYPE html>
<html>
<head><title>Third-Party Software</title></head>
<body>
<h1>Third-Party Software Used</h1>
<table border="1">
<tr><th>Library</th><th>Version</th><th>License</th></tr>
{{range .}}<tr><td>{{.Name}}</td><td>{{.Version}}</td><td>{{if .LicenseURL}}<a href="{{.LicenseURL}}">{{.License}}</a>{{else}}{{.License}}{{end}}</td></tr>
{{end}}</table>
</body>
</html>
`))

// LicenseRecords derives the attribution rows from the entries the build
// actually produced, keyed by library name.
func LicenseRecords(entries []dist.Entry, model *project.Model) []LicenseRecord {
	included := make(map[string]bool)
	for _, e := range entries {
		switch typed := e.(type) {
		case dist.ProjectLibraryEntry:
			included[typed.Library] = true
		case dist.LibraryFileEntry:
			included[typed.Library] = true
		case dist.ModuleLibraryFileEntry:
			included[typed.Library] = true
		}
	}

	names := make([]string, 0, len(included))
	for name := range included {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]LicenseRecord, 0, len(names))
	for _, name := range names {
		rec := LicenseRecord{Name: name, License: "Unknown"}
		if lib, err := model.Library(name); err == nil {
			rec.Version = lib.Version
			if lib.License != "" {
				rec.License = lib.License
			}
			rec.LicenseURL = lib.LicenseURL
		}
		records = append(records, rec)
	}
	return records
}

// WriteThirdPartyLibraries writes third-party-libraries.json and .html under
// dir.
func WriteThirdPartyLibraries(dir string, entries []dist.Entry, model *project.Model) error {
	records := LicenseRecords(entries, model)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding license report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "third-party-libraries.json"), data, 0644); err != nil {
		return fmt.Errorf("writing license report: %w", err)
	}

	htmlOut, err := os.Create(filepath.Join(dir, "third-party-libraries.html"))
	if err != nil {
		return fmt.Errorf("creating license report: %w", err)
	}
	defer htmlOut.Close()
	if err := licenseHTML.Execute(htmlOut, records); err != nil {
		return fmt.Errorf("rendering license report: %w", err)
	}
	return nil
}

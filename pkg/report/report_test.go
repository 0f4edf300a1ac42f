package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distkit/pkg/dist"
	"distkit/pkg/project"
)

func TestRecords(t *testing.T) {
	entries := []dist.Entry{
		dist.ModuleOutputEntry{Path: "lib/app.jar", Module: "intellij.platform.core"},
		dist.ProjectLibraryEntry{Path: "lib/3rd-party.jar", Library: "kotlinx", PackMode: "merged"},
		dist.ModuleLibraryFileEntry{Path: "plugins/json/lib/schema.jar", Module: "intellij.json", Library: "json-schema"},
	}

	want := []ContentRecord{
		{Path: "lib/app.jar", Type: "module-output", Provenance: "intellij.platform.core"},
		{Path: "lib/3rd-party.jar", Type: "project-library", Provenance: "kotlinx", PackMode: "merged"},
		{Path: "plugins/json/lib/schema.jar", Type: "module-library-file", Provenance: "intellij.json:json-schema"},
	}
	if diff := cmp.Diff(want, Records(entries)); diff != "" {
		t.Errorf("unexpected records (-want +got):\n%s", diff)
	}
}

func TestWriteContentMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "content-mapping.json")

	entries := []dist.Entry{
		dist.ModuleOutputEntry{Path: "lib/app.jar", Module: "intellij.platform.core"},
	}
	require.NoError(t, WriteContentMapping(path, "251.100", entries))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var mapping ContentMapping
	require.NoError(t, json.Unmarshal(data, &mapping))
	assert.Equal(t, "251.100", mapping.BuildNumber)
	require.Len(t, mapping.Records, 1)
	assert.Equal(t, "lib/app.jar", mapping.Records[0].Path)
}

func TestLicenseRecords(t *testing.T) {
	model := project.NewModel(nil, []*project.Library{
		{Name: "kotlinx", Version: "1.8.0", License: "Apache 2.0", LicenseURL: "https://example.com/apache"},
		{Name: "asm", Version: "9.6", License: "BSD"},
		{Name: "unused", License: "MIT"},
	}, nil)

	entries := []dist.Entry{
		dist.ModuleOutputEntry{Path: "lib/app.jar", Module: "intellij.platform.core"},
		dist.ProjectLibraryEntry{Path: "lib/3rd-party.jar", Library: "kotlinx", PackMode: "merged"},
		dist.LibraryFileEntry{Path: "lib/jps/asm.jar", Library: "asm"},
		dist.ProjectLibraryEntry{Path: "lib/3rd-party.jar", Library: "kotlinx", PackMode: "merged"}, // duplicate
		dist.ModuleLibraryFileEntry{Path: "plugins/p/lib/x.jar", Module: "m", Library: "unlisted"},
	}

	want := []LicenseRecord{
		{Name: "asm", Version: "9.6", License: "BSD"},
		{Name: "kotlinx", Version: "1.8.0", License: "Apache 2.0", LicenseURL: "https://example.com/apache"},
		{Name: "unlisted", License: "Unknown"},
	}
	if diff := cmp.Diff(want, LicenseRecords(entries, model)); diff != "" {
		t.Errorf("unexpected license records (-want +got):\n%s", diff)
	}
}

func TestWriteThirdPartyLibraries(t *testing.T) {
	dir := t.TempDir()
	model := project.NewModel(nil, []*project.Library{
		{Name: "kotlinx", Version: "1.8.0", License: "Apache 2.0"},
	}, nil)
	entries := []dist.Entry{
		dist.ProjectLibraryEntry{Path: "lib/3rd-party.jar", Library: "kotlinx", PackMode: "merged"},
	}

	require.NoError(t, WriteThirdPartyLibraries(dir, entries, model))

	data, err := os.ReadFile(filepath.Join(dir, "third-party-libraries.json"))
	require.NoError(t, err)
	var records []LicenseRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "kotlinx", records[0].Name)

	html, err := os.ReadFile(filepath.Join(dir, "third-party-libraries.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "kotlinx")
	assert.Contains(t, string(html), "Apache 2.0")
}

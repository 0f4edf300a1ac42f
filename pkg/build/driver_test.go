package build

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distkit/internal/buildenv"
	berrors "distkit/pkg/errors"
	"distkit/pkg/layout"
	"distkit/pkg/project"
	"distkit/pkg/report"
)

func compiled(t *testing.T, root, name string, files map[string]string) *project.Module {
	t.Helper()
	dir := filepath.Join(root, "classes", name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return &project.Module{Name: name, OutputDir: dir}
}

// Full pipeline over a small product: a two-module platform jar, a merged
// project library, one bundled plugin, and one macOS-only plugin, built for
// Windows targets only.
func TestDriverBuild(t *testing.T) {
	root := t.TempDir()

	core := compiled(t, root, "intellij.platform.core", map[string]string{"com/example/Core.class": "core"})
	ui := compiled(t, root, "intellij.platform.ui", map[string]string{"com/example/Ui.class": "ui"})
	jsonMod := compiled(t, root, "intellij.json", map[string]string{
		"META-INF/plugin.xml":    "<idea-plugin><id>com.intellij.json</id></idea-plugin>",
		"com/example/Json.class": "json",
	})
	macMod := compiled(t, root, "intellij.mac.touchbar", map[string]string{
		"META-INF/plugin.xml": "<idea-plugin><id>com.intellij.touchbar</id></idea-plugin>",
	})

	libFile := filepath.Join(root, "libs", "kotlinx.jar")
	require.NoError(t, os.MkdirAll(filepath.Dir(libFile), 0755))
	require.NoError(t, os.WriteFile(libFile, []byte("kotlinx bytes"), 0644))

	model := project.NewModel(
		[]*project.Module{core, ui, jsonMod, macMod},
		[]*project.Library{{Name: "kotlinx", Files: []string{libFile}, Version: "1.8.0", License: "Apache 2.0"}},
		nil,
	)

	platform := layout.NewPlatform(nil)
	require.NoError(t, platform.Associate("intellij.platform.core", "core.jar"))
	require.NoError(t, platform.Associate("intellij.platform.ui", "core.jar"))
	platform.WithProjectLibrary("kotlinx", layout.MergedPack)

	jsonPlugin := layout.NewPlugin("intellij.json", nil)
	macPlugin := layout.NewPlugin("intellij.mac.touchbar", nil)
	macPlugin.Bundling = layout.BundlingRestrictions{OSes: []layout.OsFamily{layout.MacOs}}

	outDir := filepath.Join(root, "dist")
	driver := &Driver{
		Model: model,
		Options: &buildenv.Options{
			ProductCode: "IU",
			BuildNumber: "251.100",
			OutDir:      outDir,
			TargetOSes:  []layout.OsFamily{layout.Windows},
		},
		Plan: &Plan{
			Platform: platform,
			Plugins:  []*layout.PluginLayout{jsonPlugin, macPlugin},
		},
	}

	entries, err := driver.Build(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	// Platform jar holds both modules' outputs.
	r, err := zip.OpenReader(filepath.Join(outDir, "lib", "core.jar"))
	require.NoError(t, err)
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	r.Close()
	sort.Strings(names)
	assert.Equal(t, []string{"com/example/Core.class", "com/example/Ui.class"}, names)

	// Merged library landed in the shared archive.
	assert.FileExists(t, filepath.Join(outDir, "lib", "3rd-party.jar"))

	// The unrestricted plugin is bundled; the macOS-only one must not appear
	// in a Windows-targeted distribution.
	assert.FileExists(t, filepath.Join(outDir, "plugins", "json", "lib", "json.jar"))
	assert.NoDirExists(t, filepath.Join(outDir, "plugins", "mac-touchbar"))
	assert.NoDirExists(t, outDir+"-macos-x64")

	// Entries are sorted and cover platform, library, and plugin files.
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.OutputPath()
	}
	assert.True(t, sort.StringsAreSorted(paths), "entries must be sorted: %v", paths)
	assert.Contains(t, paths, "lib/core.jar")
	assert.Contains(t, paths, "lib/3rd-party.jar")
	assert.Contains(t, paths, "plugins/json/lib/json.jar")

	// Reports round-trip.
	mappingData, err := os.ReadFile(filepath.Join(outDir, "content-mapping.json"))
	require.NoError(t, err)
	var mapping report.ContentMapping
	require.NoError(t, json.Unmarshal(mappingData, &mapping))
	assert.Equal(t, "251.100", mapping.BuildNumber)
	assert.Len(t, mapping.Records, len(entries))

	licenseData, err := os.ReadFile(filepath.Join(outDir, "third-party-libraries.json"))
	require.NoError(t, err)
	var licenses []report.LicenseRecord
	require.NoError(t, json.Unmarshal(licenseData, &licenses))
	require.Len(t, licenses, 1)
	assert.Equal(t, "kotlinx", licenses[0].Name)
}

func TestDriverBuildSkipsSteps(t *testing.T) {
	root := t.TempDir()
	core := compiled(t, root, "intellij.platform.core", map[string]string{"Core.class": "c"})
	model := project.NewModel([]*project.Module{core}, nil, nil)

	platform := layout.NewPlatform(nil)
	require.NoError(t, platform.Associate("intellij.platform.core", "core.jar"))

	outDir := filepath.Join(root, "dist")
	driver := &Driver{
		Model: model,
		Options: &buildenv.Options{
			BuildNumber:  "251.100",
			OutDir:       outDir,
			SkippedSteps: []string{buildenv.StepPlatform, buildenv.StepReports},
		},
		Plan: &Plan{Platform: platform},
	}

	entries, err := driver.Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoFileExists(t, filepath.Join(outDir, "lib", "core.jar"))
	assert.NoFileExists(t, filepath.Join(outDir, "content-mapping.json"))
}

func TestDriverBuildRejectsMissingCompiledOutput(t *testing.T) {
	model := project.NewModel([]*project.Module{{Name: "intellij.platform.core"}}, nil, nil)

	platform := layout.NewPlatform(nil)
	require.NoError(t, platform.Associate("intellij.platform.core", "core.jar"))

	driver := &Driver{
		Model:   model,
		Options: &buildenv.Options{BuildNumber: "251.100", OutDir: t.TempDir()},
		Plan:    &Plan{Platform: platform},
	}

	_, err := driver.Build(context.Background())
	require.ErrorIs(t, err, berrors.ErrEnvironment)
}

package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "distkit/pkg/errors"
)

const modelYAML = `
modules:
  - name: intellij.platform.core
    outputDir: /out/classes/intellij.platform.core
    libraries: [kotlinx]
  - name: intellij.json
    outputDir: /out/classes/intellij.json
libraries:
  - name: kotlinx
    files: [/libs/kotlinx.jar]
    version: 1.8.0
    license: Apache 2.0
  - name: json-schema
    scope: module
    module: intellij.json
    files: [/libs/json-schema.jar]
artifacts:
  - name: jps-standalone
    outputPath: /out/artifacts/jps
    elements:
      - kind: module-output
        module: intellij.platform.jps
      - kind: library-files
        library: kotlinx
`

func TestParseModel(t *testing.T) {
	model, err := ParseModel([]byte(modelYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"intellij.platform.core", "intellij.json"}, model.ModuleNames())

	core, err := model.Module("intellij.platform.core")
	require.NoError(t, err)
	assert.Equal(t, "/out/classes/intellij.platform.core", core.OutputDir)
	assert.Equal(t, []string{"kotlinx"}, core.Libraries)

	kotlinx, err := model.Library("kotlinx")
	require.NoError(t, err)
	assert.Equal(t, ProjectScope, kotlinx.Scope)
	assert.Equal(t, "Apache 2.0", kotlinx.License)

	schema, err := model.Library("json-schema")
	require.NoError(t, err)
	assert.Equal(t, ModuleScope, schema.Scope)
	assert.Equal(t, "intellij.json", schema.Module)

	jps, err := model.Artifact("jps-standalone")
	require.NoError(t, err)
	require.Len(t, jps.Elements, 2)
	assert.Equal(t, ModuleOutputElement, jps.Elements[0].Kind)
	assert.Equal(t, LibraryFilesElement, jps.Elements[1].Kind)
}

func TestParseModelRejectsUnknownScope(t *testing.T) {
	_, err := ParseModel([]byte("libraries:\n  - name: x\n    scope: global\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "global")
}

func TestParseModelRejectsUnknownElementKind(t *testing.T) {
	_, err := ParseModel([]byte(`
artifacts:
  - name: a
    elements:
      - kind: directory-copy
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory-copy")
}

func TestModelLookupsFailOnUnknownNames(t *testing.T) {
	model := NewModel(nil, nil, nil)

	_, err := model.Module("nope")
	require.ErrorIs(t, err, berrors.ErrConfiguration)
	_, err = model.Library("nope")
	require.ErrorIs(t, err, berrors.ErrConfiguration)
	_, err = model.Artifact("nope")
	require.ErrorIs(t, err, berrors.ErrUnknownArtifact)
}

func TestNewModelLaterDuplicateWins(t *testing.T) {
	model := NewModel([]*Module{
		{Name: "intellij.platform.core", OutputDir: "/old"},
		{Name: "intellij.platform.core", OutputDir: "/new"},
	}, nil, nil)

	assert.Equal(t, []string{"intellij.platform.core"}, model.ModuleNames())
	mod, err := model.Module("intellij.platform.core")
	require.NoError(t, err)
	assert.Equal(t, "/new", mod.OutputDir)
}

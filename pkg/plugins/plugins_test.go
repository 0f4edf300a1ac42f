package plugins

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "distkit/pkg/errors"
	"distkit/pkg/layout"
	"distkit/pkg/patcher"
	"distkit/pkg/project"
)

func moduleWithDescriptor(t *testing.T, root, name, descriptor string) *project.Module {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	if descriptor != "" {
		metaInf := filepath.Join(dir, "META-INF")
		require.NoError(t, os.MkdirAll(metaInf, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(metaInf, "plugin.xml"), []byte(descriptor), 0644))
	}
	return &project.Module{Name: name, OutputDir: dir}
}

func TestFindDescriptorModule(t *testing.T) {
	root := t.TempDir()
	main := moduleWithDescriptor(t, root, "intellij.json", "<idea-plugin><id>com.intellij.json</id></idea-plugin>")
	helper := moduleWithDescriptor(t, root, "intellij.json.split", "")
	model := project.NewModel([]*project.Module{main, helper}, nil, nil)

	lay := layout.NewPlugin("intellij.json", nil)
	lay.WithModuleInJar("intellij.json.split", "json.jar")

	owner, content, err := findDescriptorModule(lay, model, patcher.New())
	require.NoError(t, err)
	assert.Equal(t, "intellij.json", owner)
	assert.Contains(t, string(content), "com.intellij.json")
}

func TestFindDescriptorModuleMissing(t *testing.T) {
	root := t.TempDir()
	main := moduleWithDescriptor(t, root, "intellij.json", "")
	model := project.NewModel([]*project.Module{main}, nil, nil)

	lay := layout.NewPlugin("intellij.json", nil)

	_, _, err := findDescriptorModule(lay, model, patcher.New())
	require.ErrorIs(t, err, berrors.ErrDescriptorCount)
	assert.Contains(t, err.Error(), "intellij.json")
}

func TestFindDescriptorModuleDuplicate(t *testing.T) {
	root := t.TempDir()
	main := moduleWithDescriptor(t, root, "intellij.json", "<idea-plugin/>")
	other := moduleWithDescriptor(t, root, "intellij.json.extra", "<idea-plugin/>")
	model := project.NewModel([]*project.Module{main, other}, nil, nil)

	lay := layout.NewPlugin("intellij.json", nil)
	lay.WithModuleInJar("intellij.json.extra", "json.jar")

	_, _, err := findDescriptorModule(lay, model, patcher.New())
	require.ErrorIs(t, err, berrors.ErrDescriptorCount)
	assert.Contains(t, err.Error(), "intellij.json.extra")
}

func TestFindDescriptorModuleIgnoresNestedJars(t *testing.T) {
	root := t.TempDir()
	main := moduleWithDescriptor(t, root, "intellij.json", "<idea-plugin><id>com.intellij.json</id></idea-plugin>")
	nested := moduleWithDescriptor(t, root, "intellij.json.rt", "<idea-plugin/>")
	model := project.NewModel([]*project.Module{main, nested}, nil, nil)

	lay := layout.NewPlugin("intellij.json", nil)
	lay.WithModuleInJar("intellij.json.rt", "rt/json-rt.jar")

	owner, _, err := findDescriptorModule(lay, model, patcher.New())
	require.NoError(t, err)
	assert.Equal(t, "intellij.json", owner)
}

func TestFindDescriptorModuleOverlayShadowsDisk(t *testing.T) {
	model := project.NewModel([]*project.Module{{Name: "intellij.json"}}, nil, nil)

	ptch := patcher.New()
	ptch.PatchFile("intellij.json", DescriptorPath, []byte("<idea-plugin><id>patched</id></idea-plugin>"))

	lay := layout.NewPlugin("intellij.json", nil)

	owner, content, err := findDescriptorModule(lay, model, ptch)
	require.NoError(t, err)
	assert.Equal(t, "intellij.json", owner)
	assert.Contains(t, string(content), "patched")
}

func TestCheckNoDesignerRuntime(t *testing.T) {
	root := t.TempDir()
	leaky := moduleWithDescriptor(t, root, "intellij.forms", "<idea-plugin/>")
	require.NoError(t, os.MkdirAll(filepath.Join(leaky.OutputDir, "com", "intellij", "uiDesigner", "core"), 0755))
	model := project.NewModel([]*project.Module{leaky}, nil, nil)

	lay := layout.NewPlugin("intellij.forms", nil)

	err := checkNoDesignerRuntime(lay, model, "")
	require.ErrorIs(t, err, berrors.ErrLeakedRuntime)

	// The designated compatibility module is allowed to bundle the runtime.
	require.NoError(t, checkNoDesignerRuntime(lay, model, "intellij.forms"))
}

func TestPluginVersion(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 30, 45, 0, time.UTC)
	descriptorWithVersion := []byte("<idea-plugin><version>2.5.1</version></idea-plugin>")
	descriptorPlaceholder := []byte("<idea-plugin><version>__BUILD_NUMBER__</version></idea-plugin>")

	tests := []struct {
		name       string
		evaluator  layout.VersionEvaluator
		descriptor []byte
		snapshot   bool
		want       string
	}{
		{name: "evaluator wins", evaluator: func(bn string) string { return "custom-" + bn }, descriptor: descriptorWithVersion, want: "custom-251.100"},
		{name: "descriptor version", descriptor: descriptorWithVersion, want: "2.5.1"},
		{name: "placeholder falls through", descriptor: descriptorPlaceholder, want: "251.100"},
		{name: "build number fallback", descriptor: []byte("<idea-plugin/>"), want: "251.100"},
		{name: "snapshot gets timestamp", descriptor: []byte("<idea-plugin/>"), snapshot: true, want: "251.100.20260831123045"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lay := layout.NewPlugin("intellij.json", nil)
			lay.VersionEvaluator = tt.evaluator
			got := pluginVersion(lay, tt.descriptor, "251.100", tt.snapshot, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPluginZipName(t *testing.T) {
	assert.Equal(t, "json-251.100.zip", pluginZipName("json", "251.100"))
}

func TestPublishStrategy(t *testing.T) {
	rules := &PublishRules{
		Allow: []PublishRule{
			{MainModule: "intellij.json"},
			{MainModule: "intellij.sh", ProductCodes: []string{"IU"}},
		},
		Deny: []PublishRule{
			{MainModule: "intellij.json", ProductCodes: []string{"PC"}},
		},
	}

	iu := NewRuleStrategy(rules, "IU")
	assert.True(t, iu.ShouldAutoPublish("intellij.json"))
	assert.True(t, iu.ShouldAutoPublish("intellij.sh"))
	assert.False(t, iu.ShouldAutoPublish("intellij.unknown"))

	pc := NewRuleStrategy(rules, "PC")
	assert.False(t, pc.ShouldAutoPublish("intellij.json"), "deny must win over allow")
	assert.False(t, pc.ShouldAutoPublish("intellij.sh"), "product-scoped allow must not match other products")
}

func TestWriteRepository(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, RepositoryFile)

	specs := []RepositorySpec{
		{
			ZipPath:       filepath.Join(dir, "sh-1.0.zip"),
			DescriptorXML: []byte("<idea-plugin><id>com.intellij.sh</id><version>1.0</version></idea-plugin>"),
		},
		{
			ZipPath:       filepath.Join(dir, "json-2.0.zip"),
			DescriptorXML: []byte("<idea-plugin><name>JSON</name><version>2.0</version></idea-plugin>"),
		},
	}
	require.NoError(t, WriteRepository(path, specs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	// Ordered by id; a missing <id> falls back to <name>.
	jsonIdx := strings.Index(content, `id="JSON"`)
	shIdx := strings.Index(content, `id="com.intellij.sh"`)
	require.GreaterOrEqual(t, jsonIdx, 0)
	require.GreaterOrEqual(t, shIdx, 0)
	assert.Less(t, jsonIdx, shIdx)
	assert.Contains(t, content, `url="json-2.0.zip"`)
	assert.Contains(t, content, `version="1.0"`)
}

package patcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatcherOverlay(t *testing.T) {
	p := New()
	p.PatchFile("intellij.json", "META-INF/plugin.xml", []byte("<idea-plugin/>"))
	p.PatchFile("intellij.json", "META-INF/plugin.xml", []byte("<idea-plugin></idea-plugin>"))
	p.PatchFile("intellij.json", "intentions.json", []byte("{}"))

	content, ok := p.PatchedContent("intellij.json", "META-INF/plugin.xml")
	require.True(t, ok)
	assert.Equal(t, "<idea-plugin></idea-plugin>", string(content), "later patch must replace the earlier one")

	_, ok = p.PatchedContent("intellij.other", "META-INF/plugin.xml")
	assert.False(t, ok)

	assert.Equal(t, []string{"META-INF/plugin.xml", "intentions.json"}, p.Entries("intellij.json"))
	assert.Equal(t, 2, p.Size())
}

func TestPatchPluginDescriptor(t *testing.T) {
	descriptor := []byte(`<idea-plugin>
  <id>com.example.tool</id>
  <version>__BUILD_NUMBER__</version>
  <idea-version since-build="1.0"/>
</idea-plugin>`)

	patched := string(PatchPluginDescriptor(descriptor, DescriptorPatch{
		Version:     "231.5432",
		ReleaseDate: "20260831",
		SinceBuild:  "231.5432",
		UntilBuild:  "231.*",
	}))

	assert.Contains(t, patched, "<version>231.5432</version>")
	assert.Contains(t, patched, `since-build="231.5432"`)
	assert.Contains(t, patched, `until-build="231.*"`)
	assert.NotContains(t, patched, BuildNumberPlaceholder)
}

func TestPatchPluginDescriptorInsertsVersion(t *testing.T) {
	descriptor := []byte("<idea-plugin>\n  <id>com.example.tool</id>\n</idea-plugin>")
	patched := string(PatchPluginDescriptor(descriptor, DescriptorPatch{Version: "231.1"}))
	require.Contains(t, patched, "<version>231.1</version>")
	if strings.Index(patched, "</id>") > strings.Index(patched, "<version>") {
		t.Errorf("version inserted before the id tag:\n%s", patched)
	}
}

func TestDescriptorVersion(t *testing.T) {
	assert.Equal(t, "1.4.2", DescriptorVersion([]byte("<idea-plugin><version> 1.4.2 </version></idea-plugin>")))
	assert.Equal(t, "", DescriptorVersion([]byte("<idea-plugin/>")))
}

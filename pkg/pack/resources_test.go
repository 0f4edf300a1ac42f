package pack

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTree(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "deep.txt"), []byte("deep"), 0644))

	dest := filepath.Join(root, "dest")
	require.NoError(t, CopyTree(src, dest))

	assert.FileExists(t, filepath.Join(dest, "top.txt"))
	data, err := os.ReadFile(filepath.Join(dest, "nested", "deep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "deep", string(data))

	// A single file source degrades to a plain file copy.
	single := filepath.Join(root, "single.txt")
	require.NoError(t, CopyTree(filepath.Join(src, "top.txt"), single))
	assert.FileExists(t, single)
}

func TestZipDirectoryIsReproducible(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b", "c.txt"), []byte("c"), 0644))

	first := filepath.Join(root, "first.zip")
	second := filepath.Join(root, "second.zip")
	require.NoError(t, ZipDirectory(src, first, false))
	require.NoError(t, ZipDirectory(src, second, false))

	firstBytes, err := os.ReadFile(first)
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, firstBytes, secondBytes, "identical trees must zip to identical bytes")

	r, err := zip.OpenReader(first)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.File, 2)
	assert.Equal(t, "a.txt", r.File[0].Name)
	assert.Equal(t, "b/c.txt", r.File[1].Name)
	for _, f := range r.File {
		assert.True(t, f.Modified.Equal(FixedTimestamp), "entry %s has timestamp %v", f.Name, f.Modified)
	}
}

func TestZipDirectoryWithRoot(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "json")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lib", "json.jar"), []byte("jar"), 0644))

	dest := filepath.Join(root, "json-251.100.zip")
	require.NoError(t, ZipDirectoryWithRoot(src, dest, "json", true))

	r, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer r.Close()
	require.Len(t, r.File, 1)
	assert.Equal(t, "json/lib/json.jar", r.File[0].Name)
}

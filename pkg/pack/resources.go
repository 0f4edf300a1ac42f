package pack

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FixedTimestamp is stamped on every archive entry so rebuilding unchanged
// inputs yields byte-identical archives.
var FixedTimestamp = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// CopyFile copies one file, creating parent directories.
func CopyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}

// CopyTree copies a file or a whole directory tree verbatim.
func CopyTree(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return CopyFile(src, dest)
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return CopyFile(p, target)
	})
}

// ZipDirectory zips a directory into destZip with sorted entries and the
// fixed timestamp, so identical trees produce identical archives.
func ZipDirectory(srcDir, destZip string, compress bool) error {
	return zipDirectory(srcDir, destZip, "", compress)
}

// ZipDirectoryWithRoot is ZipDirectory with every entry nested under root,
// the shape plugin archives use (<plugin-dir>/... inside the zip).
func ZipDirectoryWithRoot(srcDir, destZip, root string, compress bool) error {
	return zipDirectory(srcDir, destZip, root, compress)
}

func zipDirectory(srcDir, destZip, root string, compress bool) error {
	var rels []string
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", srcDir, err)
	}
	sort.Strings(rels)

	if err := os.MkdirAll(filepath.Dir(destZip), 0755); err != nil {
		return err
	}
	out, err := os.Create(destZip)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, rel := range rels {
		name := rel
		if root != "" {
			name = root + "/" + rel
		}
		fe := fileEntry{rel: name, source: filepath.Join(srcDir, filepath.FromSlash(rel))}
		if err := writeZipEntry(zw, fe, compress); err != nil {
			return err
		}
	}
	return zw.Close()
}

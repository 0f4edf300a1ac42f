// Package pack writes the distribution's jar archives and copies library
// files, producing one provenance entry per (produced file, source). The same
// code path runs in a metadata-only mode that computes the identical entry
// list without touching disk, used for pre-flight content simulation.
package pack

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	"distkit/pkg/dist"
	"distkit/pkg/layout"
	"distkit/pkg/patcher"
	"distkit/pkg/project"
)

// MergedLibraryJar is the canonical shared archive for merged project
// libraries.
const MergedLibraryJar = "3rd-party.jar"

// LibraryDedup fixes the canonical location of the build's shared
// merged-library archive and accumulates every merged library any layout
// operation registers. The archive is written once, by its owner, after all
// layout operations finished, so its location and content never depend on
// the order concurrent layouts ran in. Safe for concurrent use.
type LibraryDedup struct {
	mu           sync.Mutex
	canonicalDir string
	canonicalRel string
	libs         map[string]*project.Library
}

// NewLibraryDedup creates the accumulator for a build whose canonical shared
// archive is written into canonicalDir and reported under canonicalRel.
func NewLibraryDedup(canonicalDir, canonicalRel string) *LibraryDedup {
	return &LibraryDedup{
		canonicalDir: canonicalDir,
		canonicalRel: canonicalRel,
		libs:         make(map[string]*project.Library),
	}
}

// CanonicalPath is the report path of the shared archive.
func (d *LibraryDedup) CanonicalPath() string {
	return path.Join(d.canonicalRel, MergedLibraryJar)
}

// register adds a merged library, returning true the first time its name is
// seen.
func (d *LibraryDedup) register(lib *project.Library) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, seen := d.libs[lib.Name]; seen {
		return false
	}
	d.libs[lib.Name] = lib
	return true
}

// Write materializes the canonical shared archive with the accumulated
// libraries in name order. No-op when nothing was registered.
func (d *LibraryDedup) Write(compress bool) error {
	d.mu.Lock()
	names := make([]string, 0, len(d.libs))
	for name := range d.libs {
		names = append(names, name)
	}
	sort.Strings(names)
	sources := make([]librarySource, 0, len(names))
	for _, name := range names {
		sources = append(sources, librarySource{library: d.libs[name]})
	}
	d.mu.Unlock()

	if len(sources) == 0 {
		return nil
	}
	mergedPath := filepath.Join(d.canonicalDir, MergedLibraryJar)
	if err := writeMergedLibraries(mergedPath, sources, compress); err != nil {
		return fmt.Errorf("packing merged libraries: %w", err)
	}
	return nil
}

// Options parameterize one pack run.
type Options struct {
	// DryRun computes the entry list without writing any bytes.
	DryRun bool
	// Compress enables deflate for archive entries; otherwise entries are
	// stored.
	Compress bool
	// RelPrefix prefixes every entry's output path (e.g. "lib" for the
	// platform, "plugins/<dir>/lib" for a plugin).
	RelPrefix string
	// Dedup shares merged-library accumulation across layout operations; all
	// merged entries then point at its canonical archive, written once by the
	// build driver. Nil scopes merging to this run's output directory.
	Dedup  *LibraryDedup
	Logger hclog.Logger
}

// Jars packs every jar of the layout into outDir and returns the provenance
// entries in deterministic order.
func Jars(ctx context.Context, lay *layout.Layout, outDir string, model *project.Model, ptch *patcher.Patcher, opts Options) ([]dist.Entry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if ptch == nil {
		ptch = patcher.New()
	}

	var entries []dist.Entry
	var mergedSources []librarySource
	mergedSeen := make(map[string]bool)

	for _, jarEntry := range lay.Jars() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		jarRel := path.Join(opts.RelPrefix, jarEntry.Jar)
		jarPath := filepath.Join(outDir, filepath.FromSlash(jarEntry.Jar))

		var sources []moduleSource
		for _, moduleName := range jarEntry.Modules {
			mod, err := model.Module(moduleName)
			if err != nil {
				return nil, err
			}
			files, size, err := moduleFiles(mod, lay.ModuleExcludes[moduleName], ptch)
			if err != nil {
				return nil, err
			}
			sources = append(sources, moduleSource{module: mod, files: files})
			entries = append(entries, dist.ModuleOutputEntry{Path: jarRel, Module: moduleName, Size: size})
		}

		if !opts.DryRun {
			logger.Debug("✍️ Writing jar", "jar", jarRel, "modules", len(sources))
			if err := writeJar(jarPath, sources, opts.Compress); err != nil {
				return nil, fmt.Errorf("packing %s: %w", jarRel, err)
			}
		}
	}

	// Project libraries: merged ones fold into the canonical shared archive,
	// standalone ones keep their physical files.
	for _, includedLib := range lay.IncludedProjectLibraries {
		lib, err := model.Library(includedLib.Name)
		if err != nil {
			return nil, err
		}
		switch includedLib.Mode {
		case layout.MergedPack:
			if opts.Dedup != nil {
				if opts.Dedup.register(lib) {
					entries = append(entries, dist.ProjectLibraryEntry{
						Path: opts.Dedup.CanonicalPath(), Library: lib.Name, PackMode: layout.MergedPack.String(),
					})
				} else {
					logger.Debug("♻️ Merged library already registered, referencing", "library", lib.Name)
				}
				break
			}
			if mergedSeen[lib.Name] {
				logger.Debug("♻️ Merged library already packed, referencing", "library", lib.Name)
				break
			}
			mergedSeen[lib.Name] = true
			mergedSources = append(mergedSources, librarySource{library: lib})
			entries = append(entries, dist.ProjectLibraryEntry{
				Path: path.Join(opts.RelPrefix, MergedLibraryJar), Library: lib.Name, PackMode: layout.MergedPack.String(),
			})
		case layout.StandalonePack:
			for _, file := range lib.Files {
				rel := path.Join(opts.RelPrefix, filepath.Base(file))
				entries = append(entries, dist.ProjectLibraryEntry{
					Path: rel, Library: lib.Name, PackMode: layout.StandalonePack.String(),
				})
				if !opts.DryRun {
					dest := filepath.Join(outDir, filepath.Base(file))
					if err := CopyFile(file, dest); err != nil {
						return nil, fmt.Errorf("copying library %s: %w", lib.Name, err)
					}
				}
			}
		}
	}

	if len(mergedSources) > 0 && !opts.DryRun {
		mergedPath := filepath.Join(outDir, MergedLibraryJar)
		if err := writeMergedLibraries(mergedPath, mergedSources, opts.Compress); err != nil {
			return nil, fmt.Errorf("packing merged libraries: %w", err)
		}
	}

	// Module-scoped libraries keep their declared relative paths.
	for _, moduleLib := range lay.IncludedModuleLibraries {
		lib, err := model.Library(moduleLib.Library)
		if err != nil {
			return nil, err
		}
		rel := path.Join(opts.RelPrefix, moduleLib.RelPath)
		entries = append(entries, dist.ModuleLibraryFileEntry{
			Path: rel, Module: moduleLib.Module, Library: lib.Name,
		})
		if !opts.DryRun {
			dest := filepath.Join(outDir, filepath.FromSlash(moduleLib.RelPath))
			if len(lib.Files) == 0 {
				return nil, fmt.Errorf("module library %s has no files", lib.Name)
			}
			if err := CopyFile(lib.Files[0], dest); err != nil {
				return nil, fmt.Errorf("copying module library %s: %w", lib.Name, err)
			}
		}
	}

	return entries, nil
}

type moduleSource struct {
	module *project.Module
	files  []fileEntry
}

type librarySource struct {
	library *project.Library
}

// fileEntry is one archive entry to write: either a file on disk or patched
// overlay bytes.
type fileEntry struct {
	rel     string
	source  string
	content []byte
}

// moduleFiles enumerates one module's output honoring excludes and the
// overlay, in sorted order. Patched paths shadow on-disk files.
func moduleFiles(mod *project.Module, excludes []string, ptch *patcher.Patcher) ([]fileEntry, int64, error) {
	byRel := make(map[string]fileEntry)
	var total int64

	if mod.OutputDir != "" {
		err := filepath.WalkDir(mod.OutputDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(mod.OutputDir, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if excluded(rel, excludes) {
				return nil
			}
			byRel[rel] = fileEntry{rel: rel, source: p}
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("enumerating output of %s: %w", mod.Name, err)
		}
	}

	for _, rel := range ptch.Entries(mod.Name) {
		content, _ := ptch.PatchedContent(mod.Name, rel)
		byRel[rel] = fileEntry{rel: rel, content: content}
	}

	rels := make([]string, 0, len(byRel))
	for rel := range byRel {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	files := make([]fileEntry, 0, len(rels))
	for _, rel := range rels {
		fe := byRel[rel]
		if fe.content != nil {
			total += int64(len(fe.content))
		} else if info, err := os.Stat(fe.source); err == nil {
			total += info.Size()
		}
		files = append(files, fe)
	}
	return files, total, nil
}

// excluded applies the layout's path globs. A trailing "/**" glob excludes a
// whole subtree; anything else is a plain path match.
func excluded(rel string, globs []string) bool {
	for _, glob := range globs {
		if prefix, ok := strings.CutSuffix(glob, "/**"); ok {
			if rel == prefix || strings.HasPrefix(rel, prefix+"/") {
				return true
			}
			continue
		}
		if matched, err := path.Match(glob, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func writeJar(jarPath string, sources []moduleSource, compress bool) error {
	if err := os.MkdirAll(filepath.Dir(jarPath), 0755); err != nil {
		return err
	}
	out, err := os.Create(jarPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	written := make(map[string]bool)
	for _, src := range sources {
		for _, fe := range src.files {
			if written[fe.rel] {
				// First module wins; later duplicates are dropped, keeping
				// archive content independent of walk details.
				continue
			}
			written[fe.rel] = true
			if err := writeZipEntry(zw, fe, compress); err != nil {
				return err
			}
		}
	}
	return zw.Close()
}

// writeMergedLibraries appends every merged library jar's bytes into the
// canonical shared archive, one stored entry per source file.
func writeMergedLibraries(mergedPath string, sources []librarySource, compress bool) error {
	if err := os.MkdirAll(filepath.Dir(mergedPath), 0755); err != nil {
		return err
	}
	out, err := os.Create(mergedPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, src := range sources {
		files := append([]string(nil), src.library.Files...)
		sort.Strings(files)
		for _, file := range files {
			rel := src.library.Name + "/" + filepath.Base(file)
			if err := writeZipEntry(zw, fileEntry{rel: rel, source: file}, compress); err != nil {
				return err
			}
		}
	}
	return zw.Close()
}

func writeZipEntry(zw *zip.Writer, fe fileEntry, compress bool) error {
	method := zip.Store
	if compress {
		method = zip.Deflate
	}
	header := &zip.FileHeader{
		Name:     fe.rel,
		Method:   method,
		Modified: FixedTimestamp,
	}
	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", fe.rel, err)
	}
	if fe.content != nil {
		_, err = w.Write(fe.content)
		return err
	}
	in, err := os.Open(fe.source)
	if err != nil {
		return fmt.Errorf("opening %s: %w", fe.source, err)
	}
	defer in.Close()
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("writing entry %s: %w", fe.rel, err)
	}
	return nil
}

// Package dist records the provenance of every file the pipeline produces.
// Entries are immutable once created; the full ordered list of a build is the
// distribution and feeds the content-mapping and license reports.
package dist

import "fmt"

// Entry is one produced distribution file with its provenance.
type Entry interface {
	// OutputPath is the produced file, relative to the distribution root.
	OutputPath() string
	// Type names the entry variant for reports.
	Type() string
	// Provenance names the source module or library.
	Provenance() string
}

// ModuleOutputEntry records a file sourced from one module's compiled output.
type ModuleOutputEntry struct {
	Path   string
	Module string
	Size   int64
}

func (e ModuleOutputEntry) OutputPath() string { return e.Path }
func (e ModuleOutputEntry) Type() string       { return "module-output" }
func (e ModuleOutputEntry) Provenance() string { return e.Module }

// ModuleTestOutputEntry records a file sourced from a module's test output.
type ModuleTestOutputEntry struct {
	Path   string
	Module string
}

func (e ModuleTestOutputEntry) OutputPath() string { return e.Path }
func (e ModuleTestOutputEntry) Type() string       { return "module-test-output" }
func (e ModuleTestOutputEntry) Provenance() string { return e.Module }

// LibraryFileEntry records a file sourced from one physical library jar.
type LibraryFileEntry struct {
	Path    string
	Library string
	// LibraryFile is the source file on disk.
	LibraryFile string
}

func (e LibraryFileEntry) OutputPath() string { return e.Path }
func (e LibraryFileEntry) Type() string       { return "library-file" }
func (e LibraryFileEntry) Provenance() string { return e.Library }

// ModuleLibraryFileEntry records a file sourced from a module-scoped library.
type ModuleLibraryFileEntry struct {
	Path    string
	Module  string
	Library string
}

func (e ModuleLibraryFileEntry) OutputPath() string { return e.Path }
func (e ModuleLibraryFileEntry) Type() string       { return "module-library-file" }
func (e ModuleLibraryFileEntry) Provenance() string {
	return fmt.Sprintf("%s:%s", e.Module, e.Library)
}

// ProjectLibraryEntry records a file sourced from a project library, tagged
// with the pack mode that produced it.
type ProjectLibraryEntry struct {
	Path     string
	Library  string
	PackMode string
}

func (e ProjectLibraryEntry) OutputPath() string { return e.Path }
func (e ProjectLibraryEntry) Type() string       { return "project-library" }
func (e ProjectLibraryEntry) Provenance() string { return e.Library }

// Package layout holds the declarative description of what goes into the
// distribution's jars and directories, for the platform and for each plugin.
// Layouts are mutated through the builder API at configuration time and are
// read-only once packing starts.
package layout

import (
	"fmt"
	"strings"

	berrors "distkit/pkg/errors"
	"distkit/pkg/patcher"
	"distkit/pkg/project"
)

// Kind tags the two layout variants.
type Kind int

const (
	PlatformKind Kind = iota
	PluginKind
)

func (k Kind) String() string {
	if k == PluginKind {
		return "plugin"
	}
	return "platform"
}

// PackMode controls how a project library is packaged.
type PackMode int

const (
	// MergedPack combines the library with others into one shared archive.
	MergedPack PackMode = iota
	// StandalonePack keeps the library's files as separate entries.
	StandalonePack
)

func (m PackMode) String() string {
	if m == StandalonePack {
		return "standalone"
	}
	return "merged"
}

// ProjectLibrary is one included project-level library with its pack mode.
type ProjectLibrary struct {
	Name string
	Mode PackMode
}

// ModuleLibrary is a module-scoped library packed at a relative output path.
type ModuleLibrary struct {
	Module  string
	Library string
	RelPath string
}

// ResourcePath is an extra file or directory copied (or zipped) verbatim.
type ResourcePath struct {
	Source  string
	RelPath string
	Zipped  bool
}

// ArtifactInclusion materializes a named build artifact at a relative path.
type ArtifactInclusion struct {
	Name    string
	RelPath string
}

// Patcher rewrites module output bytes through the overlay before packing.
type Patcher func(p *patcher.Patcher, model *project.Model) error

// ResourceGenerator materializes a file or directory under the target
// directory and returns its path (empty when it produced nothing).
type ResourceGenerator func(targetDir string, model *project.Model) (string, error)

// VersionEvaluator derives a plugin version from the product build number.
type VersionEvaluator func(buildNumber string) string

// JarEntry is one output jar and the ordered modules packed into it.
type JarEntry struct {
	Jar     string
	Modules []string
}

// Layout is the payload common to the platform and every plugin.
type Layout struct {
	Kind Kind

	jarOrder     []string
	jarToModules map[string][]string
	primaryJar   map[string]string

	ModuleExcludes           map[string][]string
	IncludedProjectLibraries []ProjectLibrary
	IncludedModuleLibraries  []ModuleLibrary
	ResourcePaths            []ResourcePath
	IncludedArtifacts        []ArtifactInclusion

	carveOuts *CarveOuts
}

// PluginLayout is the plugin variant with its extra payload.
type PluginLayout struct {
	Layout

	MainModule    string
	DirectoryName string
	Bundling      BundlingRestrictions

	PathsToScramble          []string
	Patchers                 []Patcher
	ResourceGenerators       []ResourceGenerator
	VersionEvaluator         VersionEvaluator
	SkipDescriptorValidation bool
}

// NewPlatform creates an empty platform layout.
func NewPlatform(carveOuts *CarveOuts) *Layout {
	return newLayout(PlatformKind, carveOuts)
}

// NewPlugin creates a plugin layout for mainModule. The plugin directory name
// defaults to the jar base name derived from the main module.
func NewPlugin(mainModule string, carveOuts *CarveOuts) *PluginLayout {
	l := &PluginLayout{
		Layout:     *newLayout(PluginKind, carveOuts),
		MainModule: mainModule,
	}
	l.DirectoryName = strings.TrimSuffix(DefaultJarName(mainModule), ".jar")
	l.WithModule(mainModule)
	return l
}

func newLayout(kind Kind, carveOuts *CarveOuts) *Layout {
	if carveOuts == nil {
		carveOuts = DefaultCarveOuts()
	}
	return &Layout{
		Kind:           kind,
		jarToModules:   make(map[string][]string),
		primaryJar:     make(map[string]string),
		ModuleExcludes: make(map[string][]string),
		carveOuts:      carveOuts,
	}
}

// DefaultJarName derives the default jar file name for a module: the fixed
// namespace prefix is stripped and the remaining dots become hyphens.
func DefaultJarName(module string) string {
	name := strings.TrimPrefix(module, "intellij.")
	return strings.ReplaceAll(name, ".", "-") + ".jar"
}

// WithModule packs a module into its default jar.
func (l *Layout) WithModule(module string) *Layout {
	return l.mustAssociate(module, DefaultJarName(module))
}

// WithModuleInJar packs a module into an explicitly named jar.
func (l *Layout) WithModuleInJar(module, jar string) *Layout {
	return l.mustAssociate(module, jar)
}

func (l *Layout) mustAssociate(module, jar string) *Layout {
	if err := l.Associate(module, jar); err != nil {
		// Builder misuse at configuration time, not a runtime condition.
		panic(err)
	}
	return l
}

// Associate maps a module into a jar, enforcing the single-primary-jar
// invariant: a module may gain a second jar only when at least one of the two
// paths is nested (contains a directory separator) or the module is a known
// carve-out. Re-associating the identical pair is a no-op.
func (l *Layout) Associate(module, jar string) error {
	existing, ok := l.primaryJar[module]
	if ok && existing != jar {
		nested := strings.ContainsRune(existing, '/') || strings.ContainsRune(jar, '/')
		if !nested && !l.carveOuts.AllowsModule(module) {
			return fmt.Errorf("%w: module %s cannot be packed into both %s and %s",
				berrors.ErrJarConflict, module, existing, jar)
		}
	}
	for _, m := range l.jarToModules[jar] {
		if m == module {
			return nil // identical re-association
		}
	}
	if !ok {
		l.primaryJar[module] = jar
	}
	if _, seen := l.jarToModules[jar]; !seen {
		l.jarOrder = append(l.jarOrder, jar)
	}
	l.jarToModules[jar] = append(l.jarToModules[jar], module)
	return nil
}

// WithModuleExcludes registers path globs excluded when packing a module.
func (l *Layout) WithModuleExcludes(module string, globs ...string) *Layout {
	l.ModuleExcludes[module] = append(l.ModuleExcludes[module], globs...)
	return l
}

// WithProjectLibrary includes a project library with the given pack mode.
func (l *Layout) WithProjectLibrary(name string, mode PackMode) *Layout {
	l.IncludedProjectLibraries = append(l.IncludedProjectLibraries, ProjectLibrary{Name: name, Mode: mode})
	return l
}

// WithModuleLibrary includes a module-scoped library at relPath.
func (l *Layout) WithModuleLibrary(module, library, relPath string) *Layout {
	l.IncludedModuleLibraries = append(l.IncludedModuleLibraries, ModuleLibrary{
		Module: module, Library: library, RelPath: relPath,
	})
	return l
}

// WithResource copies source under relPath in the target directory.
func (l *Layout) WithResource(source, relPath string) *Layout {
	l.ResourcePaths = append(l.ResourcePaths, ResourcePath{Source: source, RelPath: relPath})
	return l
}

// WithZippedResource zips the source directory into relPath.
func (l *Layout) WithZippedResource(source, relPath string) *Layout {
	l.ResourcePaths = append(l.ResourcePaths, ResourcePath{Source: source, RelPath: relPath, Zipped: true})
	return l
}

// WithArtifact materializes a named build artifact under lib/<relPath>.
func (l *Layout) WithArtifact(name, relPath string) *Layout {
	l.IncludedArtifacts = append(l.IncludedArtifacts, ArtifactInclusion{Name: name, RelPath: relPath})
	return l
}

// Jars returns the jar entries in declaration order.
func (l *Layout) Jars() []JarEntry {
	out := make([]JarEntry, 0, len(l.jarOrder))
	for _, jar := range l.jarOrder {
		modules := make([]string, len(l.jarToModules[jar]))
		copy(modules, l.jarToModules[jar])
		out = append(out, JarEntry{Jar: jar, Modules: modules})
	}
	return out
}

// TopLevelModules returns modules packed into non-nested jars, in order.
// Descriptor validation only considers these.
func (l *Layout) TopLevelModules() []string {
	var out []string
	seen := make(map[string]bool)
	for _, jar := range l.jarOrder {
		if strings.ContainsRune(jar, '/') {
			continue
		}
		for _, m := range l.jarToModules[jar] {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// Modules returns every module referenced by any jar, in order.
func (l *Layout) Modules() []string {
	var out []string
	seen := make(map[string]bool)
	for _, jar := range l.jarOrder {
		for _, m := range l.jarToModules[jar] {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

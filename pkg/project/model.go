// Package project models the inputs the orchestrator consumes from the
// surrounding build system: the module graph, the library registry, and the
// named build artifacts. The model is read-only for the whole pipeline run.
package project

import (
	"fmt"

	berrors "distkit/pkg/errors"
)

// LibraryScope distinguishes project-wide libraries from module-scoped ones.
type LibraryScope int

const (
	ProjectScope LibraryScope = iota
	ModuleScope
)

func (s LibraryScope) String() string {
	if s == ModuleScope {
		return "module"
	}
	return "project"
}

// Module is one compiled module of the project graph.
type Module struct {
	Name          string   `yaml:"name"`
	OutputDir     string   `yaml:"outputDir"`
	TestOutputDir string   `yaml:"testOutputDir"`
	Libraries     []string `yaml:"libraries"`
	ContentRoots  []string `yaml:"contentRoots"`
}

// Library is one library of the registry. License metadata feeds the
// third-party attribution report.
type Library struct {
	Name       string       `yaml:"name"`
	Files      []string     `yaml:"files"`
	Scope      LibraryScope `yaml:"-"`
	ScopeName  string       `yaml:"scope"`
	Module     string       `yaml:"module"`
	Version    string       `yaml:"version"`
	License    string       `yaml:"license"`
	LicenseURL string       `yaml:"licenseUrl"`
}

// ArtifactElementKind tags how one artifact element is packaged; the report
// writer decomposes artifacts along these kinds.
type ArtifactElementKind int

const (
	ModuleOutputElement ArtifactElementKind = iota
	ModuleTestOutputElement
	LibraryFilesElement
)

// ArtifactElement is one node of an artifact's packaging graph.
type ArtifactElement struct {
	Kind     ArtifactElementKind `yaml:"-"`
	KindName string              `yaml:"kind"`
	Module   string              `yaml:"module"`
	Library  string              `yaml:"library"`
}

// Artifact is a named build-system artifact with an already materialized
// output (file or directory) and a packaging graph for reporting.
type Artifact struct {
	Name       string            `yaml:"name"`
	OutputPath string            `yaml:"outputPath"`
	Elements   []ArtifactElement `yaml:"elements"`
}

// Model is the full project structure the pipeline runs against.
type Model struct {
	modules   map[string]*Module
	libraries map[string]*Library
	artifacts map[string]*Artifact

	moduleOrder []string
}

// NewModel builds a model from its parts. Later duplicates win, matching how
// the external project exporter emits overrides.
func NewModel(modules []*Module, libraries []*Library, artifacts []*Artifact) *Model {
	m := &Model{
		modules:   make(map[string]*Module, len(modules)),
		libraries: make(map[string]*Library, len(libraries)),
		artifacts: make(map[string]*Artifact, len(artifacts)),
	}
	for _, mod := range modules {
		if _, seen := m.modules[mod.Name]; !seen {
			m.moduleOrder = append(m.moduleOrder, mod.Name)
		}
		m.modules[mod.Name] = mod
	}
	for _, lib := range libraries {
		m.libraries[lib.Name] = lib
	}
	for _, art := range artifacts {
		m.artifacts[art.Name] = art
	}
	return m
}

// Module resolves a module by name; unknown names are configuration errors.
func (m *Model) Module(name string) (*Module, error) {
	mod, ok := m.modules[name]
	if !ok {
		return nil, berrors.Configf(name, "module is not part of the project model")
	}
	return mod, nil
}

// Library resolves a library by name; unknown names are configuration errors.
func (m *Model) Library(name string) (*Library, error) {
	lib, ok := m.libraries[name]
	if !ok {
		return nil, berrors.Configf(name, "library is not part of the project model")
	}
	return lib, nil
}

// Artifact resolves an artifact by name.
func (m *Model) Artifact(name string) (*Artifact, error) {
	art, ok := m.artifacts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", berrors.ErrUnknownArtifact, name)
	}
	return art, nil
}

// ModuleNames returns module names in declaration order.
func (m *Model) ModuleNames() []string {
	out := make([]string, len(m.moduleOrder))
	copy(out, m.moduleOrder)
	return out
}

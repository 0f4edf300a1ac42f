// Package patcher implements the module output overlay: pipeline stages can
// inject or rewrite bytes of a module's compiled output before packing without
// touching the compiled files on disk.
package patcher

import (
	"path"
	"sort"
)

// Patcher is a mutable overlay of (module, relative path) -> content.
//
// A Patcher is owned by exactly one layout operation at a time and carries no
// internal locking: every write must happen before the owning layout's pack
// step starts reading it. Aliasing one instance across concurrent layout
// operations is a bug.
type Patcher struct {
	entries map[string]map[string][]byte
}

// New creates an empty overlay.
func New() *Patcher {
	return &Patcher{entries: make(map[string]map[string][]byte)}
}

// PatchFile records content for relPath inside module's output, replacing any
// earlier patch for the same path.
func (p *Patcher) PatchFile(module, relPath string, content []byte) {
	relPath = path.Clean(relPath)
	byPath, ok := p.entries[module]
	if !ok {
		byPath = make(map[string][]byte)
		p.entries[module] = byPath
	}
	byPath[relPath] = content
}

// PatchedContent returns the overlay content for relPath in module, if any.
func (p *Patcher) PatchedContent(module, relPath string) ([]byte, bool) {
	byPath, ok := p.entries[module]
	if !ok {
		return nil, false
	}
	content, ok := byPath[path.Clean(relPath)]
	return content, ok
}

// Entries returns the patched relative paths for module in sorted order.
func (p *Patcher) Entries(module string) []string {
	byPath := p.entries[module]
	paths := make([]string, 0, len(byPath))
	for rel := range byPath {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}

// Size reports the total number of patched files across all modules.
func (p *Patcher) Size() int {
	n := 0
	for _, byPath := range p.entries {
		n += len(byPath)
	}
	return n
}

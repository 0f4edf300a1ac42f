package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CarveOuts is the allow-list of known-intentional exceptions to the layout
// invariants. Historically these were hardcoded names inside the association
// checks; keeping them as configuration means a new exception is a data
// change, not a code change.
type CarveOuts struct {
	// Modules allowed to appear under two unrelated top-level jars.
	Modules []string `yaml:"modules"`
	// PluginMainModules allowed to own more than one plugin layout.
	PluginMainModules []string `yaml:"pluginMainModules"`
}

// DefaultCarveOuts returns the carve-outs shipped with the product.
func DefaultCarveOuts() *CarveOuts {
	return &CarveOuts{
		Modules:           []string{"intellij.maven.artifactResolver.common"},
		PluginMainModules: []string{"kotlin-ultimate.kmm-plugin"},
	}
}

// LoadCarveOuts reads carve-outs from a YAML file.
func LoadCarveOuts(path string) (*CarveOuts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading carve-outs: %w", err)
	}
	var c CarveOuts
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing carve-outs: %w", err)
	}
	return &c, nil
}

// AllowsModule reports whether module may violate the single-jar invariant.
func (c *CarveOuts) AllowsModule(module string) bool {
	for _, m := range c.Modules {
		if m == module {
			return true
		}
	}
	return false
}

// AllowsDuplicatePlugin reports whether mainModule may own duplicate layouts.
func (c *CarveOuts) AllowsDuplicatePlugin(mainModule string) bool {
	for _, m := range c.PluginMainModules {
		if m == mainModule {
			return true
		}
	}
	return false
}

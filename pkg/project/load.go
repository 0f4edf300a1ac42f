package project

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// modelFile is the on-disk YAML shape produced by the project exporter.
type modelFile struct {
	Modules   []*Module   `yaml:"modules"`
	Libraries []*Library  `yaml:"libraries"`
	Artifacts []*Artifact `yaml:"artifacts"`
}

// LoadModel reads an exported project model from a YAML file.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project model: %w", err)
	}
	return ParseModel(data)
}

// ParseModel parses an exported project model from YAML bytes.
func ParseModel(data []byte) (*Model, error) {
	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing project model: %w", err)
	}
	for _, lib := range file.Libraries {
		switch lib.ScopeName {
		case "", "project":
			lib.Scope = ProjectScope
		case "module":
			lib.Scope = ModuleScope
		default:
			return nil, fmt.Errorf("library %s: unknown scope %q", lib.Name, lib.ScopeName)
		}
	}
	for _, art := range file.Artifacts {
		for i := range art.Elements {
			el := &art.Elements[i]
			switch el.KindName {
			case "", "module-output":
				el.Kind = ModuleOutputElement
			case "module-test-output":
				el.Kind = ModuleTestOutputElement
			case "library-files":
				el.Kind = LibraryFilesElement
			default:
				return nil, fmt.Errorf("artifact %s: unknown element kind %q", art.Name, el.KindName)
			}
		}
	}
	return NewModel(file.Modules, file.Libraries, file.Artifacts), nil
}

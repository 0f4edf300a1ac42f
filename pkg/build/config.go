package build

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"distkit/pkg/layout"
)

// Product configuration: the externally authored layout description the CLI
// runs against. It covers the declarative subset of the layout model; patch
// functions and resource generators stay code-level and are attached by the
// embedding product when it constructs the Plan itself.

type productFile struct {
	Platform    *layoutSpec  `yaml:"platform"`
	Plugins     []pluginSpec `yaml:"plugins"`
	SkipBundled []string     `yaml:"skipBundled"`
}

type layoutSpec struct {
	Jars             []jarSpec           `yaml:"jars"`
	ModuleExcludes   map[string][]string `yaml:"moduleExcludes"`
	ProjectLibraries []projectLibSpec    `yaml:"projectLibraries"`
	ModuleLibraries  []moduleLibSpec     `yaml:"moduleLibraries"`
	Resources        []resourceSpec      `yaml:"resources"`
	Artifacts        []artifactSpec      `yaml:"artifacts"`
}

type jarSpec struct {
	Jar     string   `yaml:"jar"`
	Modules []string `yaml:"modules"`
}

type projectLibSpec struct {
	Name string `yaml:"name"`
	Mode string `yaml:"mode"`
}

type moduleLibSpec struct {
	Module  string `yaml:"module"`
	Library string `yaml:"library"`
	RelPath string `yaml:"relPath"`
}

type resourceSpec struct {
	Source  string `yaml:"source"`
	RelPath string `yaml:"relPath"`
	Zipped  bool   `yaml:"zipped"`
}

type artifactSpec struct {
	Name    string `yaml:"name"`
	RelPath string `yaml:"relPath"`
}

type pluginSpec struct {
	MainModule   string     `yaml:"mainModule"`
	Directory    string     `yaml:"directory"`
	Layout       layoutSpec `yaml:",inline"`
	OSes         []string   `yaml:"oses"`
	Arches       []string   `yaml:"arches"`
	EAPOnly      bool       `yaml:"eapOnly"`
	Publish      bool       `yaml:"publish"`
	Scramble     []string   `yaml:"scramble"`
	NoDescriptor bool       `yaml:"noDescriptor"`
}

// LoadPlan reads a product layout description from a YAML file.
func LoadPlan(path string, carveOuts *layout.CarveOuts) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading product config: %w", err)
	}
	return ParsePlan(data, carveOuts)
}

// ParsePlan parses a product layout description from YAML bytes.
func ParsePlan(data []byte, carveOuts *layout.CarveOuts) (*Plan, error) {
	var file productFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing product config: %w", err)
	}

	plan := &Plan{SkipBundled: file.SkipBundled}

	if file.Platform != nil {
		plan.Platform = layout.NewPlatform(carveOuts)
		if err := applyLayoutSpec(plan.Platform, file.Platform); err != nil {
			return nil, err
		}
	}

	for _, spec := range file.Plugins {
		if spec.MainModule == "" {
			return nil, fmt.Errorf("plugin without mainModule in product config")
		}
		plug := layout.NewPlugin(spec.MainModule, carveOuts)
		if spec.Directory != "" {
			plug.DirectoryName = spec.Directory
		}
		if err := applyLayoutSpec(&plug.Layout, &spec.Layout); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", spec.MainModule, err)
		}
		plug.Bundling = layout.BundlingRestrictions{EAPOnly: spec.EAPOnly}
		for _, osName := range spec.OSes {
			plug.Bundling.OSes = append(plug.Bundling.OSes, layout.OsFamily(osName))
		}
		for _, arch := range spec.Arches {
			plug.Bundling.Arches = append(plug.Bundling.Arches, layout.Arch(arch))
		}
		plug.PathsToScramble = spec.Scramble
		plug.SkipDescriptorValidation = spec.NoDescriptor

		plan.Plugins = append(plan.Plugins, plug)
		if spec.Publish {
			plan.ToPublish = append(plan.ToPublish, plug)
		}
	}

	return plan, nil
}

func applyLayoutSpec(lay *layout.Layout, spec *layoutSpec) error {
	for _, jar := range spec.Jars {
		for _, moduleName := range jar.Modules {
			if err := lay.Associate(moduleName, jar.Jar); err != nil {
				return err
			}
		}
	}
	for moduleName, globs := range spec.ModuleExcludes {
		lay.WithModuleExcludes(moduleName, globs...)
	}
	for _, lib := range spec.ProjectLibraries {
		mode := layout.MergedPack
		switch lib.Mode {
		case "", "merged":
		case "standalone":
			mode = layout.StandalonePack
		default:
			return fmt.Errorf("library %s: unknown pack mode %q", lib.Name, lib.Mode)
		}
		lay.WithProjectLibrary(lib.Name, mode)
	}
	for _, lib := range spec.ModuleLibraries {
		lay.WithModuleLibrary(lib.Module, lib.Library, lib.RelPath)
	}
	for _, res := range spec.Resources {
		if res.Zipped {
			lay.WithZippedResource(res.Source, res.RelPath)
		} else {
			lay.WithResource(res.Source, res.RelPath)
		}
	}
	for _, art := range spec.Artifacts {
		lay.WithArtifact(art.Name, art.RelPath)
	}
	return nil
}

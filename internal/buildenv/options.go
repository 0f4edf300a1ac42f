// Package buildenv carries the per-invocation build options and the
// environment checks run before the pipeline starts.
package buildenv

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	berrors "distkit/pkg/errors"
	"distkit/pkg/layout"
)

// Named build steps that can be skipped via options. A skipped step is a
// soft-skip observability event, never a failure.
const (
	StepPlatform       = "platform"
	StepBundledPlugins = "bundled-plugins"
	StepOsPlugins      = "os-plugins"
	StepNonBundled     = "non-bundled-plugins"
	StepScramble       = "scramble"
	StepBlockMaps      = "block-maps"
	StepReports        = "reports"
)

// Options are the external knobs of one build invocation.
type Options struct {
	ProductCode string `yaml:"productCode"`
	BuildNumber string `yaml:"buildNumber"`
	EAPChannel  bool   `yaml:"eap"`
	ReleaseDate string `yaml:"releaseDate"` // yyyyMMdd

	TargetOSes   []layout.OsFamily `yaml:"targetOSes"`
	TargetArches []layout.Arch     `yaml:"targetArches"`

	CompressPlugins bool     `yaml:"compressPlugins"`
	SkippedSteps    []string `yaml:"skippedSteps"`

	// OutDir is the distAll root; StageDir stages non-bundled plugins.
	OutDir   string `yaml:"outDir"`
	StageDir string `yaml:"stageDir"`
}

// LoadOptions reads options from a YAML file.
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading build options: %w", err)
	}
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parsing build options: %w", err)
	}
	return &o, nil
}

// Validate checks option consistency before the pipeline starts.
func (o *Options) Validate() error {
	if o.BuildNumber == "" {
		return berrors.Configf("options", "buildNumber must be set")
	}
	if o.OutDir == "" {
		return berrors.Configf("options", "outDir must be set")
	}
	if len(o.TargetOSes) == 0 {
		o.TargetOSes = append([]layout.OsFamily(nil), layout.AllOsFamilies...)
	}
	if len(o.TargetArches) == 0 {
		o.TargetArches = append([]layout.Arch(nil), layout.AllArches...)
	}
	if o.StageDir == "" {
		o.StageDir = o.OutDir + "-staging"
	}
	return nil
}

// IsStepSkipped reports whether a named step is disabled.
func (o *Options) IsStepSkipped(step string) bool {
	for _, s := range o.SkippedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// IsSnapshot reports whether the build number denotes a snapshot build.
func (o *Options) IsSnapshot() bool {
	return strings.HasSuffix(o.BuildNumber, ".SNAPSHOT")
}

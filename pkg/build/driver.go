// Package build wires the whole pipeline: the platform library job runs
// first (asynchronously), plugin builds fan out concurrently against it, and
// every partial result converges into one ordered distribution for the
// reports. One invocation owns one task scope; any child failure tears the
// scope down.
package build

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"distkit/internal/buildenv"
	"distkit/internal/tasks"
	"distkit/pkg/dist"
	"distkit/pkg/engine"
	"distkit/pkg/layout"
	"distkit/pkg/pack"
	"distkit/pkg/patcher"
	"distkit/pkg/plugins"
	"distkit/pkg/project"
	"distkit/pkg/report"
	"distkit/pkg/scramble"
)

// Plan is the resolved layout configuration of one product build.
type Plan struct {
	Platform  *layout.Layout
	Plugins   []*layout.PluginLayout
	ToPublish []*layout.PluginLayout

	// SkipBundled lists plugin main modules never bundled even when their
	// restrictions allow it.
	SkipBundled []string
}

// Driver runs one build invocation.
type Driver struct {
	Model     *project.Model
	Options   *buildenv.Options
	Plan      *Plan
	CarveOuts *layout.CarveOuts

	Scrambler scramble.Scrambler
	Publish   plugins.PublishStrategy

	// CompatibilityModule is the one module allowed to bundle GUI-designer
	// runtime classes.
	CompatibilityModule string

	Logger hclog.Logger
}

// Build executes the pipeline and returns the full ordered distribution.
func (d *Driver) Build(ctx context.Context) ([]dist.Entry, error) {
	logger := d.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := d.Options.Validate(); err != nil {
		return nil, err
	}
	if d.CarveOuts == nil {
		d.CarveOuts = layout.DefaultCarveOuts()
	}

	logger.Info("🚀 Distribution build starting",
		"product", d.Options.ProductCode,
		"build", d.Options.BuildNumber,
		"eap", d.Options.EAPChannel)

	if d.Plan.Platform != nil {
		if err := buildenv.ValidateCompiledOutput(d.Model, d.Plan.Platform.Modules()); err != nil {
			return nil, err
		}
	}

	// The platform's lib directory is the canonical home of the shared
	// merged-library archive; plugin layouts reference it there.
	dedup := pack.NewLibraryDedup(filepath.Join(d.Options.OutDir, "lib"), "lib")
	collector := dist.NewCollector()
	scope := tasks.NewScope(ctx)

	// The platform library job is scheduled before anything that may depend
	// on it (scrambling needs platform classes on its classpath).
	platformJob := tasks.Fork(scope, "platform", func(ctx context.Context) ([]dist.Entry, error) {
		if d.Plan.Platform == nil || d.Options.IsStepSkipped(buildenv.StepPlatform) {
			logger.Info("⏭️ Platform build skipped")
			return nil, nil
		}
		logger.Info("🏗️ Building platform", "target", d.Options.OutDir)
		return engine.Run(ctx, engine.Input{
			Layout:    d.Plan.Platform,
			TargetDir: d.Options.OutDir,
			RelPrefix: "",
			CopyFiles: true,
			Patcher:   patcher.New(),
			Model:     d.Model,
			Dedup:     dedup,
			Compress:  d.Options.CompressPlugins,
			Logger:    logger,
		})
	})

	orchestrator := &plugins.Orchestrator{
		Model:               d.Model,
		Options:             d.Options,
		CarveOuts:           d.CarveOuts,
		Dedup:               dedup,
		Scrambler:           d.Scrambler,
		Publish:             d.Publish,
		CompatibilityModule: d.CompatibilityModule,
		SkipBundled:         d.Plan.SkipBundled,
		Logger:              logger,
	}

	scope.Go("bundled-plugins", func(ctx context.Context) error {
		entries, err := orchestrator.BuildBundled(ctx, d.Plan.Plugins, platformJob)
		if err != nil {
			return err
		}
		collector.Add(entries...)
		return nil
	})

	scope.Go("os-plugins", func(ctx context.Context) error {
		entries, err := orchestrator.BuildOSSpecific(ctx, d.Plan.Plugins, platformJob)
		if err != nil {
			return err
		}
		collector.Add(entries...)
		return nil
	})

	scope.Go("non-bundled-plugins", func(ctx context.Context) error {
		entries, err := orchestrator.BuildNonBundled(ctx, d.Plan.ToPublish, platformJob)
		if err != nil {
			return err
		}
		collector.Add(entries...)
		return nil
	})

	if err := scope.Wait(); err != nil {
		return nil, err
	}

	platformEntries, err := platformJob.Wait(ctx)
	if err != nil {
		return nil, err
	}
	collector.Add(platformEntries...)

	// All layouts have registered their merged libraries; write the shared
	// archive exactly once, at its canonical location.
	if err := dedup.Write(d.Options.CompressPlugins); err != nil {
		return nil, err
	}

	sorted := collector.Sorted()

	if d.Options.IsStepSkipped(buildenv.StepReports) {
		logger.Info("⏭️ Report generation skipped by options")
	} else {
		mappingPath := filepath.Join(d.Options.OutDir, "content-mapping.json")
		if err := report.WriteContentMapping(mappingPath, d.Options.BuildNumber, sorted); err != nil {
			return nil, err
		}
		if err := report.WriteThirdPartyLibraries(d.Options.OutDir, sorted, d.Model); err != nil {
			return nil, err
		}
	}

	logger.Info("✅ Distribution build finished", "entries", len(sorted))
	return sorted, nil
}

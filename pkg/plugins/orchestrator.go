// Package plugins fans the layout engine out over the product's plugin set:
// bundled plugins into the main distribution, OS/arch-specific plugins into
// their platform directories, and non-bundled plugins into a publishing
// staging area with repository metadata and incremental-download sidecars.
package plugins

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"distkit/internal/buildenv"
	"distkit/internal/tasks"
	"distkit/pkg/blockmap"
	"distkit/pkg/dist"
	"distkit/pkg/engine"
	berrors "distkit/pkg/errors"
	"distkit/pkg/layout"
	"distkit/pkg/pack"
	"distkit/pkg/patcher"
	"distkit/pkg/project"
	"distkit/pkg/scramble"
)

// RepositoryFile and AutoUploadRepositoryFile name the generated
// custom-plugin-repository manifests in the staging directory.
const (
	RepositoryFile           = "plugin-repository.xml"
	AutoUploadRepositoryFile = "auto-upload-plugin-repository.xml"
)

// Orchestrator drives plugin packaging for one build invocation.
type Orchestrator struct {
	Model     *project.Model
	Options   *buildenv.Options
	CarveOuts *layout.CarveOuts

	// Dedup shares merged-library packing across the platform and plugins.
	Dedup *pack.LibraryDedup

	// Scrambler is nil when the external tool is absent; scrambling is then
	// a recorded soft-skip.
	Scrambler scramble.Scrambler

	// Publish selects non-bundled plugins for the auto-upload repository.
	Publish PublishStrategy

	// CompatibilityModule is the one module allowed to bundle GUI-designer
	// runtime classes.
	CompatibilityModule string

	// SkipBundled lists plugin main modules excluded from bundling.
	SkipBundled []string

	Logger hclog.Logger

	// now is overridable in tests for snapshot-version determinism checks.
	now func() time.Time
}

func (o *Orchestrator) logger() hclog.Logger {
	if o.Logger == nil {
		return hclog.NewNullLogger()
	}
	return o.Logger
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}

// scrambleItem is one deferred scramble, collected during packing and run
// only after the whole batch and the platform job completed.
type scrambleItem struct {
	plugin    *layout.PluginLayout
	pluginDir string
}

// BuildBundled packs the bundled plugin set into <outDir>/plugins and returns
// the provenance entries.
func (o *Orchestrator) BuildBundled(ctx context.Context, all []*layout.PluginLayout, platformJob *tasks.Task[[]dist.Entry]) ([]dist.Entry, error) {
	logger := o.logger()
	if o.Options.IsStepSkipped(buildenv.StepBundledPlugins) {
		logger.Info("⏭️ Bundled plugin build skipped by options")
		return nil, nil
	}

	var selected []*layout.PluginLayout
	for _, lay := range all {
		if o.isSkippedBundled(lay.MainModule) {
			continue
		}
		if lay.Bundling.Satisfies(nil, nil, o.Options.EAPChannel) {
			selected = append(selected, lay)
		}
	}

	entries, items, err := o.buildSet(ctx, selected, filepath.Join(o.Options.OutDir, "plugins"), "plugins", o.Options.BuildNumber)
	if err != nil {
		return nil, err
	}
	if err := o.runScrambles(ctx, items, platformJob); err != nil {
		return nil, err
	}
	logger.Info("✅ Bundled plugins packed", "count", len(selected))
	return entries, nil
}

// BuildOSSpecific packs, for every targeted (OS, arch) combination, the
// plugins bundled only for that combination, concurrently across
// combinations. Combinations with no matching plugin are skipped.
func (o *Orchestrator) BuildOSSpecific(ctx context.Context, all []*layout.PluginLayout, platformJob *tasks.Task[[]dist.Entry]) ([]dist.Entry, error) {
	logger := o.logger()
	if o.Options.IsStepSkipped(buildenv.StepOsPlugins) {
		logger.Info("⏭️ OS-specific plugin build skipped by options")
		return nil, nil
	}

	collector := dist.NewCollector()
	group, groupCtx := errgroup.WithContext(ctx)

	for _, osFamily := range o.Options.TargetOSes {
		for _, arch := range o.Options.TargetArches {
			osFamily, arch := osFamily, arch

			var selected []*layout.PluginLayout
			for _, lay := range all {
				if lay.Bundling.Satisfies(nil, nil, o.Options.EAPChannel) {
					continue // already bundled OS-agnostically
				}
				if lay.Bundling.Satisfies(&osFamily, &arch, o.Options.EAPChannel) {
					selected = append(selected, lay)
				}
			}
			if len(selected) == 0 {
				continue
			}

			targetRoot := fmt.Sprintf("%s-%s-%s", o.Options.OutDir, osFamily, arch)
			group.Go(func() error {
				entries, items, err := o.buildSet(groupCtx, selected, filepath.Join(targetRoot, "plugins"), "plugins", o.Options.BuildNumber)
				if err != nil {
					return fmt.Errorf("plugins for %s/%s: %w", osFamily, arch, err)
				}
				if err := o.runScrambles(groupCtx, items, platformJob); err != nil {
					return err
				}
				collector.Add(entries...)
				logger.Info("✅ OS-specific plugins packed", "os", osFamily, "arch", arch, "count", len(selected))
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return collector.Sorted(), nil
}

// publishedPlugin carries the per-plugin state of non-bundled packaging
// between its pack, scramble, and zip phases.
type publishedPlugin struct {
	layout     *layout.PluginLayout
	pluginDir  string
	version    string
	descriptor []byte
}

// BuildNonBundled packs the publishable plugin set into the staging
// directory: plugin directories, zips with block-map and hash sidecars, and
// the repository manifests (full set and auto-upload subset). Zipping runs
// after scrambling so published archives carry scrambled bytes.
func (o *Orchestrator) BuildNonBundled(ctx context.Context, toPublish []*layout.PluginLayout, platformJob *tasks.Task[[]dist.Entry]) ([]dist.Entry, error) {
	logger := o.logger()
	if o.Options.IsStepSkipped(buildenv.StepNonBundled) {
		logger.Info("⏭️ Non-bundled plugin build skipped by options")
		return nil, nil
	}
	if len(toPublish) == 0 {
		return nil, nil
	}

	sorted, err := o.sortAndCheck(toPublish)
	if err != nil {
		return nil, err
	}

	stage := o.Options.StageDir
	collector := dist.NewCollector()
	var items []scrambleItem
	published := make([]*publishedPlugin, len(sorted))

	group, groupCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i, lay := range sorted {
		i, lay := i, lay
		group.Go(func() error {
			preDescriptor, _, err := o.readDescriptor(lay)
			if err != nil {
				return err
			}
			version := pluginVersion(lay, preDescriptor, o.Options.BuildNumber, o.Options.IsSnapshot(), o.clock())

			pluginDir := filepath.Join(stage, lay.DirectoryName)
			entries, descriptor, err := o.buildOne(groupCtx, lay, pluginDir, path.Join("plugins", lay.DirectoryName), version)
			if err != nil {
				return err
			}
			collector.Add(entries...)
			published[i] = &publishedPlugin{layout: lay, pluginDir: pluginDir, version: version, descriptor: descriptor}
			if len(lay.PathsToScramble) > 0 {
				mu.Lock()
				items = append(items, scrambleItem{plugin: lay, pluginDir: pluginDir})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if err := o.runScrambles(ctx, items, platformJob); err != nil {
		return nil, err
	}

	var allSpecs, autoSpecs []RepositorySpec
	zipGroup, zipCtx := errgroup.WithContext(ctx)
	var specMu sync.Mutex
	for _, pub := range published {
		pub := pub
		zipGroup.Go(func() error {
			if err := zipCtx.Err(); err != nil {
				return err
			}
			zipPath := filepath.Join(stage, pluginZipName(pub.layout.DirectoryName, pub.version))
			if err := pack.ZipDirectoryWithRoot(pub.pluginDir, zipPath, pub.layout.DirectoryName, o.Options.CompressPlugins); err != nil {
				return fmt.Errorf("zipping plugin %s: %w", pub.layout.MainModule, err)
			}
			if o.Options.IsStepSkipped(buildenv.StepBlockMaps) {
				logger.Info("⏭️ Block map generation skipped by options", "zip", filepath.Base(zipPath))
			} else if err := blockmap.WriteSidecars(zipPath); err != nil {
				return fmt.Errorf("sidecars for %s: %w", pub.layout.MainModule, err)
			}
			if pub.descriptor != nil {
				spec := RepositorySpec{ZipPath: zipPath, DescriptorXML: pub.descriptor}
				specMu.Lock()
				allSpecs = append(allSpecs, spec)
				if o.Publish != nil && o.Publish.ShouldAutoPublish(pub.layout.MainModule) {
					autoSpecs = append(autoSpecs, spec)
				}
				specMu.Unlock()
			}
			logger.Info("📦 Published plugin staged", "plugin", pub.layout.MainModule, "version", pub.version)
			return nil
		})
	}
	if err := zipGroup.Wait(); err != nil {
		return nil, err
	}

	if err := WriteRepository(filepath.Join(stage, RepositoryFile), allSpecs); err != nil {
		return nil, err
	}
	if err := WriteRepository(filepath.Join(stage, AutoUploadRepositoryFile), autoSpecs); err != nil {
		return nil, err
	}
	return collector.Sorted(), nil
}

// buildSet packs a plugin set into pluginsDir, one concurrent engine run per
// plugin (each plugin owns its own subdirectory, so writers never overlap).
// Scramble work is collected, not run.
func (o *Orchestrator) buildSet(ctx context.Context, set []*layout.PluginLayout, pluginsDir, relPrefix, version string) ([]dist.Entry, []scrambleItem, error) {
	sorted, err := o.sortAndCheck(set)
	if err != nil {
		return nil, nil, err
	}

	collector := dist.NewCollector()
	var items []scrambleItem
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	for _, lay := range sorted {
		lay := lay
		group.Go(func() error {
			pluginDir := filepath.Join(pluginsDir, lay.DirectoryName)
			entries, _, err := o.buildOne(groupCtx, lay, pluginDir, path.Join(relPrefix, lay.DirectoryName), version)
			if err != nil {
				return err
			}
			collector.Add(entries...)
			if len(lay.PathsToScramble) > 0 {
				mu.Lock()
				items = append(items, scrambleItem{plugin: lay, pluginDir: pluginDir})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	return collector.Sorted(), items, nil
}

// buildOne validates, patches, and packs a single plugin layout. Returns the
// engine entries and the descriptor content as packed (nil for layouts
// exempt from descriptor validation).
func (o *Orchestrator) buildOne(ctx context.Context, lay *layout.PluginLayout, pluginDir, relPrefix, version string) ([]dist.Entry, []byte, error) {
	ptch := patcher.New()
	var descriptor []byte

	if !lay.SkipDescriptorValidation {
		descriptorModule, content, err := findDescriptorModule(lay, o.Model, ptch)
		if err != nil {
			return nil, nil, err
		}
		if err := checkNoDesignerRuntime(lay, o.Model, o.CompatibilityModule); err != nil {
			return nil, nil, err
		}
		since, until := compatibilityRange(o.Options.BuildNumber)
		descriptor = patcher.PatchPluginDescriptor(content, patcher.DescriptorPatch{
			Version:     version,
			ReleaseDate: o.Options.ReleaseDate,
			SinceBuild:  since,
			UntilBuild:  until,
		})
		ptch.PatchFile(descriptorModule, DescriptorPath, descriptor)
	}

	entries, err := engine.Run(ctx, engine.Input{
		Layout:    &lay.Layout,
		Plugin:    lay,
		TargetDir: pluginDir,
		RelPrefix: relPrefix,
		CopyFiles: true,
		Patcher:   ptch,
		Model:     o.Model,
		Dedup:     o.Dedup,
		Compress:  o.Options.CompressPlugins,
		Logger:    o.logger(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("plugin %s: %w", lay.MainModule, err)
	}
	return entries, descriptor, nil
}

// readDescriptor fetches a plugin's descriptor without patching, used for
// version derivation. Layouts exempt from validation may have none.
func (o *Orchestrator) readDescriptor(lay *layout.PluginLayout) ([]byte, string, error) {
	if lay.SkipDescriptorValidation {
		return nil, "", nil
	}
	module, content, err := findDescriptorModule(lay, o.Model, patcher.New())
	if err != nil {
		return nil, "", err
	}
	return content, module, nil
}

// sortAndCheck orders plugins by main module (a total order, required for
// reproducible archive-entry ordering) and rejects duplicate layouts for one
// main module unless carved out.
func (o *Orchestrator) sortAndCheck(set []*layout.PluginLayout) ([]*layout.PluginLayout, error) {
	sorted := make([]*layout.PluginLayout, len(set))
	copy(sorted, set)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MainModule < sorted[j].MainModule
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].MainModule == sorted[i-1].MainModule && !o.CarveOuts.AllowsDuplicatePlugin(sorted[i].MainModule) {
			return nil, fmt.Errorf("%w: %s", berrors.ErrDuplicatePlugin, sorted[i].MainModule)
		}
	}
	return sorted, nil
}

// runScrambles executes the batch's deferred scramble work: never before the
// whole batch finished packing, never before the platform job completed
// (the scrambler's classpath may need platform classes). Plugins scramble
// concurrently, bounded to the CPU count; any failure fails the run.
func (o *Orchestrator) runScrambles(ctx context.Context, items []scrambleItem, platformJob *tasks.Task[[]dist.Entry]) error {
	logger := o.logger()
	if len(items) == 0 {
		return nil
	}
	if o.Options.IsStepSkipped(buildenv.StepScramble) || o.Scrambler == nil {
		logger.Info("⏭️ Scrambling skipped", "plugins", len(items))
		return nil
	}

	if platformJob != nil {
		if _, err := platformJob.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for platform before scrambling: %w", err)
		}
	}

	platformJars, err := filepath.Glob(filepath.Join(o.Options.OutDir, "lib", "*.jar"))
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(int64(runtime.NumCPU()))
	group, groupCtx := errgroup.WithContext(ctx)
	for _, item := range items {
		item := item
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			return o.Scrambler.Scramble(groupCtx, scramble.Request{
				PluginDir: item.pluginDir,
				Paths:     item.plugin.PathsToScramble,
				Classpath: platformJars,
			})
		})
	}
	return group.Wait()
}

func (o *Orchestrator) isSkippedBundled(mainModule string) bool {
	for _, skipped := range o.SkipBundled {
		if skipped == mainModule {
			return true
		}
	}
	return false
}

// compatibilityRange derives the since/until build attributes from the
// product build number: since is the number without its snapshot suffix,
// until widens to the whole branch.
func compatibilityRange(buildNumber string) (since, until string) {
	since = strings.TrimSuffix(buildNumber, ".SNAPSHOT")
	if branch, _, ok := strings.Cut(since, "."); ok {
		until = branch + ".*"
	} else {
		until = since + ".*"
	}
	return since, until
}

// Package engine runs one layout operation: pack the layout's jars, copy its
// additional resources, and materialize its included artifacts, as three
// concurrent sub-tasks whose provenance entries are merged. One failing
// sub-task cancels its siblings; a layout either completes fully or fails.
package engine

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"distkit/pkg/dist"
	berrors "distkit/pkg/errors"
	"distkit/pkg/layout"
	"distkit/pkg/pack"
	"distkit/pkg/patcher"
	"distkit/pkg/project"
)

// Input parameterizes one layout operation.
type Input struct {
	// Layout is the common payload; Plugin is set for plugin layouts and
	// carries the patchers and resource generators.
	Layout *layout.Layout
	Plugin *layout.PluginLayout

	// TargetDir is the directory the layout materializes into; RelPrefix
	// prefixes report entry paths relative to the distribution root.
	TargetDir string
	RelPrefix string

	// CopyFiles false computes the entry list without touching disk.
	CopyFiles bool

	Patcher  *patcher.Patcher
	Model    *project.Model
	Dedup    *pack.LibraryDedup
	Compress bool
	Logger   hclog.Logger
}

// Run executes the layout operation and returns the merged entries: pack
// entries first, then resource entries, then artifact entries, each group
// internally ordered.
func Run(ctx context.Context, in Input) ([]dist.Entry, error) {
	logger := in.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	ptch := in.Patcher
	if ptch == nil {
		ptch = patcher.New()
	}

	if in.CopyFiles {
		if err := checkExcludedModulesCompiled(in.Layout, in.Model); err != nil {
			return nil, err
		}
	}

	// Custom patchers run to completion, serially and in declaration order,
	// before any packing reads the overlay.
	if in.Plugin != nil && in.CopyFiles {
		for i, patch := range in.Plugin.Patchers {
			if err := patch(ptch, in.Model); err != nil {
				return nil, fmt.Errorf("patcher %d of %s: %w", i, in.Plugin.MainModule, err)
			}
		}
	}

	var packEntries, artifactEntries []dist.Entry

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		packEntries, err = pack.Jars(groupCtx, in.Layout, filepath.Join(in.TargetDir, "lib"), in.Model, ptch, pack.Options{
			DryRun:    !in.CopyFiles,
			Compress:  in.Compress,
			RelPrefix: path.Join(in.RelPrefix, "lib"),
			Dedup:     in.Dedup,
			Logger:    logger,
		})
		return err
	})

	group.Go(func() error {
		return packResources(groupCtx, in, logger)
	})

	group.Go(func() error {
		var err error
		artifactEntries, err = packArtifacts(groupCtx, in, logger)
		return err
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return append(packEntries, artifactEntries...), nil
}

// checkExcludedModulesCompiled enforces the precondition that excludes only
// reference modules with compiled output on disk.
func checkExcludedModulesCompiled(lay *layout.Layout, model *project.Model) error {
	for moduleName := range lay.ModuleExcludes {
		mod, err := model.Module(moduleName)
		if err != nil {
			return err
		}
		info, statErr := os.Stat(mod.OutputDir)
		if mod.OutputDir == "" || statErr != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s (expected output at %s)",
				berrors.ErrExcludeWithoutOutput, moduleName, mod.OutputDir)
		}
	}
	return nil
}

// packResources copies or zips the layout's resource paths and invokes the
// plugin's resource generators. Runs only when files are being written.
func packResources(ctx context.Context, in Input, logger hclog.Logger) error {
	if !in.CopyFiles {
		return nil
	}
	for _, res := range in.Layout.ResourcePaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := filepath.Join(in.TargetDir, filepath.FromSlash(res.RelPath))
		if res.Zipped {
			logger.Debug("🗜️ Zipping resource", "source", res.Source, "dest", dest)
			if err := pack.ZipDirectory(res.Source, dest, in.Compress); err != nil {
				return fmt.Errorf("zipping resource %s: %w", res.Source, err)
			}
		} else {
			logger.Debug("📂 Copying resource", "source", res.Source, "dest", dest)
			if err := pack.CopyTree(res.Source, dest); err != nil {
				return fmt.Errorf("copying resource %s: %w", res.Source, err)
			}
		}
	}
	if in.Plugin != nil {
		for i, generate := range in.Plugin.ResourceGenerators {
			if err := ctx.Err(); err != nil {
				return err
			}
			produced, err := generate(in.TargetDir, in.Model)
			if err != nil {
				return fmt.Errorf("resource generator %d of %s: %w", i, in.Plugin.MainModule, err)
			}
			if produced != "" {
				logger.Debug("🌱 Generated resource", "path", produced)
			}
		}
	}
	return nil
}

// packArtifacts materializes included build artifacts under lib/ and
// decomposes their packaging graphs into report entries. Resolution failures
// (unknown artifact names) abort the layout operation.
func packArtifacts(ctx context.Context, in Input, logger hclog.Logger) ([]dist.Entry, error) {
	var entries []dist.Entry
	for _, inclusion := range in.Layout.IncludedArtifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		art, err := in.Model.Artifact(inclusion.Name)
		if err != nil {
			return nil, err
		}
		rel := path.Join(in.RelPrefix, "lib", inclusion.RelPath)
		if in.CopyFiles {
			dest := filepath.Join(in.TargetDir, "lib", filepath.FromSlash(inclusion.RelPath))
			logger.Debug("🏺 Materializing artifact", "artifact", art.Name, "dest", dest)
			if err := pack.CopyTree(art.OutputPath, dest); err != nil {
				return nil, fmt.Errorf("materializing artifact %s: %w", art.Name, err)
			}
		}
		for _, el := range art.Elements {
			switch el.Kind {
			case project.ModuleOutputElement:
				entries = append(entries, dist.ModuleOutputEntry{Path: rel, Module: el.Module})
			case project.ModuleTestOutputElement:
				entries = append(entries, dist.ModuleTestOutputEntry{Path: rel, Module: el.Module})
			case project.LibraryFilesElement:
				lib, err := in.Model.Library(el.Library)
				if err != nil {
					return nil, err
				}
				libraryFile := ""
				if len(lib.Files) > 0 {
					libraryFile = lib.Files[0]
				}
				entries = append(entries, dist.LibraryFileEntry{Path: rel, Library: lib.Name, LibraryFile: libraryFile})
			}
		}
	}
	return entries, nil
}

package buildenv

import (
	"io/fs"
	"os"
	"path/filepath"

	berrors "distkit/pkg/errors"
	"distkit/pkg/project"
)

// ValidateCompiledOutput checks that every named module has compiled output
// on disk. A missing or empty output directory is an environment defect: the
// external compile step did not produce what this pipeline consumes, and the
// fix lives upstream.
func ValidateCompiledOutput(model *project.Model, modules []string) error {
	for _, name := range modules {
		mod, err := model.Module(name)
		if err != nil {
			return err
		}
		if err := requireNonEmptyDir(mod.OutputDir); err != nil {
			return err
		}
	}
	return nil
}

func requireNonEmptyDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return berrors.Envf(dir, "compiled output directory is missing; check the compile step logs")
	}
	empty := true
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			empty = false
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return berrors.Envf(dir, "compiled output directory is unreadable: %v", walkErr)
	}
	if empty {
		return berrors.Envf(dir, "compiled output directory is empty; check the compile step logs")
	}
	return nil
}

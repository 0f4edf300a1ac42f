package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	berrors "distkit/pkg/errors"
	"distkit/pkg/layout"
	"distkit/pkg/patcher"
	"distkit/pkg/project"
)

// DescriptorPath is where a plugin's descriptor lives inside a module output.
const DescriptorPath = "META-INF/plugin.xml"

// designerRuntimePrefix marks GUI-designer runtime classes, which must come
// from the shared platform jar, never be bundled inside a plugin.
const designerRuntimePrefix = "com/intellij/uiDesigner/core/"

// findDescriptorModule locates the single module among the plugin's top-level
// jar modules that bundles the descriptor. Zero or more than one is a fatal
// configuration error naming the main module and the offenders.
func findDescriptorModule(lay *layout.PluginLayout, model *project.Model, ptch *patcher.Patcher) (string, []byte, error) {
	var owners []string
	var content []byte

	for _, moduleName := range lay.TopLevelModules() {
		data, ok, err := descriptorContent(moduleName, model, ptch)
		if err != nil {
			return "", nil, err
		}
		if ok {
			owners = append(owners, moduleName)
			content = data
		}
	}

	switch len(owners) {
	case 1:
		return owners[0], content, nil
	case 0:
		return "", nil, fmt.Errorf("%w: plugin %s has no %s in any of its modules",
			berrors.ErrDescriptorCount, lay.MainModule, DescriptorPath)
	default:
		return "", nil, fmt.Errorf("%w: plugin %s has descriptors in modules %s",
			berrors.ErrDescriptorCount, lay.MainModule, strings.Join(owners, ", "))
	}
}

// descriptorContent reads the descriptor of one module, the overlay shadowing
// the compiled output.
func descriptorContent(moduleName string, model *project.Model, ptch *patcher.Patcher) ([]byte, bool, error) {
	if data, ok := ptch.PatchedContent(moduleName, DescriptorPath); ok {
		return data, true, nil
	}
	mod, err := model.Module(moduleName)
	if err != nil {
		return nil, false, err
	}
	if mod.OutputDir == "" {
		return nil, false, nil
	}
	path := filepath.Join(mod.OutputDir, filepath.FromSlash(DescriptorPath))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading descriptor of %s: %w", moduleName, err)
	}
	return data, true, nil
}

// checkNoDesignerRuntime verifies no module but the designated compatibility
// module bundles GUI-designer runtime classes.
func checkNoDesignerRuntime(lay *layout.PluginLayout, model *project.Model, compatibilityModule string) error {
	for _, moduleName := range lay.Modules() {
		if moduleName == compatibilityModule {
			continue
		}
		mod, err := model.Module(moduleName)
		if err != nil {
			return err
		}
		if mod.OutputDir == "" {
			continue
		}
		runtimeDir := filepath.Join(mod.OutputDir, filepath.FromSlash(designerRuntimePrefix))
		if info, err := os.Stat(runtimeDir); err == nil && info.IsDir() {
			return fmt.Errorf("%w: module %s of plugin %s bundles %s",
				berrors.ErrLeakedRuntime, moduleName, lay.MainModule, designerRuntimePrefix)
		}
	}
	return nil
}

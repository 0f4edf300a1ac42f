// Package errors defines the failure taxonomy of the distribution build:
// configuration defects and environment defects are fatal and never retried,
// everything else propagates as a plain wrapped error through the task scope
// that observed it.
package errors

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors 🧩
	ErrConfiguration = errors.New("❌ invalid build configuration")

	// Environment errors 🌍
	ErrEnvironment = errors.New("❌ invalid build environment")

	// Layout errors 🗺️
	ErrJarConflict          = errors.New("❌ module is already packed into another jar")
	ErrDuplicatePlugin      = errors.New("❌ duplicate plugin layout for main module")
	ErrDescriptorCount      = errors.New("❌ plugin must bundle exactly one descriptor")
	ErrLeakedRuntime        = errors.New("❌ GUI designer runtime classes leaked into plugin")
	ErrUnknownArtifact      = errors.New("❌ artifact is not defined in the project model")
	ErrExcludeWithoutOutput = errors.New("❌ module excludes defined for a module without compiled output")
)

// ConfigError is a fatal configuration defect naming the offending entity.
type ConfigError struct {
	Entity string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %q: %s", e.Entity, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// Configf builds a ConfigError for entity with a formatted reason.
func Configf(entity, format string, args ...any) error {
	return &ConfigError{Entity: entity, Reason: fmt.Sprintf(format, args...)}
}

// EnvError is a fatal environment defect: an expected path is missing or
// empty after an upstream step that should have produced it.
type EnvError struct {
	Path string
	Hint string
}

func (e *EnvError) Error() string {
	return fmt.Sprintf("environment error at %q: %s", e.Path, e.Hint)
}

func (e *EnvError) Unwrap() error { return ErrEnvironment }

// Envf builds an EnvError for path with a formatted hint.
func Envf(path, format string, args ...any) error {
	return &EnvError{Path: path, Hint: fmt.Sprintf(format, args...)}
}

// Package logging constructs the hclog loggers used across the build pipeline.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// New creates a named hclog logger with the pipeline's standard settings.
//
// The level string accepts the usual hclog levels plus a "json" or
// "json:<level>" form that switches the logger to JSON output.
func New(name string, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}

	jsonFormat := os.Getenv("DISTKIT_JSON_LOG") == "1"
	actualLevel := level
	if strings.HasPrefix(level, "json") {
		jsonFormat = true
		actualLevel = "info"
		if parts := strings.SplitN(level, ":", 2); len(parts) == 2 {
			actualLevel = parts[1]
		}
	}

	// Support log file output
	if logPath := os.Getenv("DISTKIT_LOG_PATH"); logPath != "" {
		if file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			output = file
		}
	}

	// Add 📦 prefix to non-JSON output
	if !jsonFormat {
		output = NewPrefixWriter("📦 ", output)
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(actualLevel),
		JSONFormat: jsonFormat,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z", // UTC ISO format without timezone
		TimeFn: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Level returns the configured log level from the environment.
func Level() string {
	level := os.Getenv("DISTKIT_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return level
}

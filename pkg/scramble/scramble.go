// Package scramble hooks bytecode obfuscation into plugin packaging. The
// scrambler is an optional external tool; when it is not installed the step
// is skipped and recorded, never failed.
package scramble

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Request describes one plugin scramble run.
type Request struct {
	// PluginDir is the packed plugin directory.
	PluginDir string
	// Paths are the archive paths inside PluginDir to scramble.
	Paths []string
	// Classpath lists jars the scrambler needs to resolve references,
	// including the shared platform library.
	Classpath []string
}

// Scrambler obfuscates selected jars of a packed plugin.
type Scrambler interface {
	Scramble(ctx context.Context, req Request) error
}

// ToolScrambler shells out to an external scrambler via a command template.
// Placeholders: {dir}, {paths}, {classpath}.
type ToolScrambler struct {
	commandTemplate string
	logger          hclog.Logger
}

// Discover returns a ToolScrambler when toolDir exists, or nil when the tool
// is absent (a soft-skip condition for callers).
func Discover(toolDir, commandTemplate string, logger hclog.Logger) (*ToolScrambler, error) {
	if toolDir == "" {
		return nil, nil
	}
	info, err := os.Stat(toolDir)
	if err != nil || !info.IsDir() {
		logger.Info("⏭️ Scrambler tool directory absent, scrambling will be skipped", "dir", toolDir)
		return nil, nil
	}
	if commandTemplate == "" {
		return nil, fmt.Errorf("scrambler tool present at %s but no command template configured", toolDir)
	}
	return &ToolScrambler{commandTemplate: commandTemplate, logger: logger}, nil
}

// Scramble runs the external tool for one plugin. The tool's failure fails
// the whole run.
func (s *ToolScrambler) Scramble(ctx context.Context, req Request) error {
	command := s.commandTemplate
	command = strings.ReplaceAll(command, "{dir}", req.PluginDir)
	command = strings.ReplaceAll(command, "{paths}", strings.Join(req.Paths, string(os.PathListSeparator)))
	command = strings.ReplaceAll(command, "{classpath}", strings.Join(req.Classpath, string(os.PathListSeparator)))

	argv, err := splitCommand(command)
	if err != nil {
		return fmt.Errorf("parsing scrambler command: %w", err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("empty scrambler command")
	}

	s.logger.Debug("🔀 Scrambling", "dir", req.PluginDir, "paths", req.Paths)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("scrambler failed for %s: %w\n%s", req.PluginDir, err, output)
	}
	return nil
}

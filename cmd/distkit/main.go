package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"distkit/internal/buildenv"
	"distkit/pkg/blockmap"
	"distkit/pkg/build"
	"distkit/pkg/layout"
	"distkit/pkg/logging"
	"distkit/pkg/plugins"
	"distkit/pkg/project"
	"distkit/pkg/scramble"
)

const version = "0.2.0"

var (
	modelPath        string
	productPath      string
	optionsPath      string
	carveOutsPath    string
	publishRulesPath string
	scramblerDir     string
	scramblerCommand string
	outDir           string
	buildNumber      string
	logLevel         string
	rootCmd          *cobra.Command
)

func getBuilderTimestamp() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func init() {
	rootCmd = &cobra.Command{
		Use:     "distkit",
		Short:   "Build distribution archives for a product",
		Long:    `Build distribution archives for a product: platform jars, bundled and published plugins, and the content reports.`,
		Version: version,
		RunE:    runBuild,
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("distkit {{.Version}}\nBuilt: %s\n", getBuilderTimestamp()))

	rootCmd.Flags().StringVarP(&modelPath, "model", "m", "", "Path to exported project model YAML (required)")
	rootCmd.Flags().StringVarP(&productPath, "product", "p", "", "Path to product layout YAML (required)")
	rootCmd.Flags().StringVar(&optionsPath, "options", "", "Path to build options YAML")
	rootCmd.Flags().StringVar(&carveOutsPath, "carve-outs", "", "Path to layout invariant carve-outs YAML")
	rootCmd.Flags().StringVar(&publishRulesPath, "publish-rules", "", "Path to auto-publish allow/deny YAML")
	rootCmd.Flags().StringVar(&scramblerDir, "scrambler-dir", "", "Directory of the optional scrambler tool")
	rootCmd.Flags().StringVar(&scramblerCommand, "scrambler-command", "", "Scrambler command template ({dir}, {paths}, {classpath})")
	rootCmd.Flags().StringVarP(&outDir, "out", "o", "", "Distribution output directory (overrides options)")
	rootCmd.Flags().StringVar(&buildNumber, "build-number", "", "Product build number (overrides options)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, json:<level>)")
	rootCmd.Flags().BoolP("version", "V", false, "Show version information")

	if err := rootCmd.MarkFlagRequired("model"); err != nil {
		panic(err)
	}
	if err := rootCmd.MarkFlagRequired("product"); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "verify <archive>...",
		Short: "Verify archives against their hash sidecars",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runVerify,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	logger := logging.New("distkit", logging.Level(), nil)
	for _, archive := range args {
		if err := blockmap.VerifySidecar(archive); err != nil {
			logger.Error("❌ Archive verification failed", "archive", archive, "error", err)
			return err
		}
		logger.Info("✅ Archive verified", "archive", archive)
	}
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	level := logLevel
	if level == "" {
		level = logging.Level()
	}
	logger := logging.New("distkit", level, nil)

	opts := &buildenv.Options{}
	if optionsPath != "" {
		loaded, err := buildenv.LoadOptions(optionsPath)
		if err != nil {
			return err
		}
		opts = loaded
	}
	if outDir != "" {
		opts.OutDir = outDir
	}
	if buildNumber != "" {
		opts.BuildNumber = buildNumber
	}

	carveOuts := layout.DefaultCarveOuts()
	if carveOutsPath != "" {
		loaded, err := layout.LoadCarveOuts(carveOutsPath)
		if err != nil {
			return err
		}
		carveOuts = loaded
	}

	model, err := project.LoadModel(modelPath)
	if err != nil {
		return err
	}

	plan, err := build.LoadPlan(productPath, carveOuts)
	if err != nil {
		return err
	}

	var publish plugins.PublishStrategy
	if publishRulesPath != "" {
		rules, err := plugins.LoadPublishRules(publishRulesPath)
		if err != nil {
			return err
		}
		publish = plugins.NewRuleStrategy(rules, opts.ProductCode)
	}

	scrambler, err := scramble.Discover(scramblerDir, scramblerCommand, logger)
	if err != nil {
		return err
	}

	driver := &build.Driver{
		Model:     model,
		Options:   opts,
		Plan:      plan,
		CarveOuts: carveOuts,
		Publish:   publish,
		Logger:    logger,
	}
	if scrambler != nil {
		driver.Scrambler = scrambler
	}

	if _, err := driver.Build(context.Background()); err != nil {
		logger.Error("❌ Build failed", "error", err)
		return err
	}
	return nil
}

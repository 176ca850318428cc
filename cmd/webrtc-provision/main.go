// Command webrtc-provision prepares the webrtc-audio-processing native library
// for the Rust -sys crate: it builds or downloads the library, compiles the
// wrapper, generates bindings and prints the cargo link directives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/errors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Global flags shared by every command.
var (
	configFile string
	outDir     string
	logLevel   string
	logFormat  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "webrtc-provision",
	Short:         "Provision the webrtc-audio-processing native library",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "TOML configuration file (default $"+config.EnvConfigFile+")")
	flags.StringVar(&outDir, "out-dir", "", "Build output directory (overrides $"+config.EnvOutDir+")")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "Log format: console or json")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Mirror build tool output to stderr")

	rootCmd.AddCommand(buildCmd, sourceCmd, bindingsCmd, assetCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprint(os.Stderr, errors.Diagnostic(err))
		os.Exit(1)
	}
}

// loadConfig assembles the configuration: defaults, file, environment, then
// the command line. validate is false for commands that need no output dir.
func loadConfig(cmd *cobra.Command, validate bool, overrides ...func(*config.Config)) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}

	cfg, err := config.Load(config.LoadOptions{
		Path:           path,
		Lookup:         os.LookupEnv,
		SkipValidation: true,
	})
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("out-dir") {
		cfg.OutDir = outDir
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	for _, o := range overrides {
		o(cfg)
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger builds the CLI logger. Logs go to stderr: stdout carries directives.
func newLogger(cfg config.Logging) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, errors.InvalidConfig(fmt.Sprintf("unknown log level %q", cfg.Level), err)
	}
	zc.Level = lvl
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

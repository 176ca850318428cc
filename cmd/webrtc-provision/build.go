package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or download the native library, compile the wrapper and generate bindings",
	Long: `Runs the whole provisioning pipeline for the configured target and prints
the cargo link directives on stdout. Intended to be called from build.rs.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var (
	buildForce       bool
	buildTargetOS    string
	buildTargetArch  string
	buildDeriveSerde bool
	buildSerdeMode   string
)

func init() {
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "Rebuild even if the build stamp matches")
	buildCmd.Flags().StringVar(&buildTargetOS, "target-os", "", "Target OS (overrides $"+config.EnvTargetOS+")")
	buildCmd.Flags().StringVar(&buildTargetArch, "target-arch", "", "Target architecture (overrides $"+config.EnvTargetArch+")")
	buildCmd.Flags().BoolVar(&buildDeriveSerde, "derive-serde", false, "Add serde derives to the generated bindings")
	buildCmd.Flags().StringVar(&buildSerdeMode, "serde-mode", "", "How serde derives are added: generator or rewrite")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, true, func(c *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("force") {
			c.Force = buildForce
		}
		if flags.Changed("target-os") {
			c.Target.OS = buildTargetOS
		}
		if flags.Changed("target-arch") {
			c.Target.Arch = buildTargetArch
		}
		if flags.Changed("derive-serde") {
			c.DeriveSerde = buildDeriveSerde
		}
		if flags.Changed("serde-mode") {
			c.SerdeMode = buildSerdeMode
		}
	})
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	res, err := pipeline.Run(cmd.Context(), cfg, pipeline.WithLogger(logger))
	if err != nil {
		return err
	}

	logger.Info("provisioning complete",
		zap.Bool("skipped_native_build", res.Skipped),
		zap.String("include_path", res.Paths.IncludePath),
		zap.String("lib_path", res.Paths.LibPath),
		zap.String("bindings", res.Bindings.Path))

	return pipeline.WriteDirectives(cmd.OutOrStdout(), res.Directives)
}

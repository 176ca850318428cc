package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/accessful-ai/webrtc-audio-processing/bindgen"
	"github.com/accessful-ai/webrtc-audio-processing/fetch"
)

var bindingsCmd = &cobra.Command{
	Use:   "bindings",
	Short: "Work with generated bindings",
}

var bindingsPatchCmd = &cobra.Command{
	Use:   "patch [file]",
	Short: "Add serde Serialize/Deserialize derives to a generated bindings file",
	Long: `Rewrites the file in place. The rewrite is not idempotent: running it twice
adds the derives twice.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bindgen.AddSerialization(args[0])
	},
}

var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Inspect the prebuilt release asset",
}

var assetURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Print the download URL of the prebuilt release asset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), fetch.AssetFromRelease(cfg.Release).URL())
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "webrtc-provision version %s\n", version)
	},
}

func init() {
	bindingsCmd.AddCommand(bindingsPatchCmd)
	assetCmd.AddCommand(assetURLCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/accessful-ai/webrtc-audio-processing/source"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage the bundled native source tree",
}

var sourceFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Clone the upstream native source into the bundled source directory",
	Long: `Clones the upstream webrtc-audio-processing repository, with submodules,
into the bundled source directory. Use it when the git submodule was not
checked out. The destination must be empty or missing.`,
	Args: cobra.NoArgs,
	RunE: runSourceFetch,
}

var (
	fetchURL  string
	fetchRef  string
	fetchDest string
)

func init() {
	sourceFetchCmd.Flags().StringVar(&fetchURL, "url", "", "Upstream repository URL (default from config)")
	sourceFetchCmd.Flags().StringVar(&fetchRef, "ref", "", "Tag or branch to check out (default from config)")
	sourceFetchCmd.Flags().StringVar(&fetchDest, "dest", "", "Destination directory (default: bundled source)")
	sourceCmd.AddCommand(sourceFetchCmd)
}

func runSourceFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := source.FetchOptions{
		URL:    cfg.Upstream.URL,
		Ref:    cfg.Upstream.Ref,
		Logger: logger,
	}
	if fetchURL != "" {
		opts.URL = fetchURL
	}
	if fetchRef != "" {
		opts.Ref = fetchRef
	}
	if cfg.Verbose {
		opts.Progress = cmd.ErrOrStderr()
	}

	dest := cfg.BundledSource
	if fetchDest != "" {
		dest = fetchDest
	}
	return source.Fetch(cmd.Context(), dest, opts)
}

package native

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/errors"
	"github.com/accessful-ai/webrtc-audio-processing/fetch"
)

// prebuiltLibSubdir is where the release archive keeps the audio processing libraries.
var prebuiltLibSubdir = filepath.Join("webrtc", "modules", "audio_processing")

// Prebuilt installs the released Windows binaries instead of building.
type Prebuilt struct {
	root    string
	asset   fetch.ReleaseAsset
	fetcher *fetch.Fetcher
	opts    *options
	state   State
}

// NewPrebuilt returns the download strategy for cfg.
func NewPrebuilt(cfg *config.Config, fetcher *fetch.Fetcher, opts ...Option) *Prebuilt {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if fetcher == nil {
		fetcher = fetch.New(
			fetch.WithFilesystem(o.fs),
			fetch.WithLogger(o.logger),
			fetch.WithDownloadDir(cfg.DownloadDir))
	}
	return &Prebuilt{
		root:    cfg.ProvisionedRoot(),
		asset:   fetch.AssetFromRelease(cfg.Release),
		fetcher: fetcher,
		opts:    o,
	}
}

// Name implements Strategy.
func (p *Prebuilt) Name() string { return "prebuilt" }

// State returns NotConfigured until the libraries are installed.
func (p *Prebuilt) State() State { return p.state }

// ExtractDir is the directory the release archive is unpacked into.
func (p *Prebuilt) ExtractDir() string { return filepath.Join(p.root, "lib") }

// Paths implements Strategy.
func (p *Prebuilt) Paths() BuildPaths {
	return BuildPaths{
		IncludePath: p.root,
		LibPath:     filepath.Join(p.ExtractDir(), prebuiltLibSubdir),
	}
}

// Fingerprint implements Strategy.
func (p *Prebuilt) Fingerprint() []string {
	return []string{p.asset.URL()}
}

// Provision implements Strategy. It moves straight from NotConfigured to Installed.
func (p *Prebuilt) Provision(ctx context.Context) (BuildPaths, error) {
	if p.state != NotConfigured {
		return BuildPaths{}, errors.Internal("native.transition", "prebuilt libraries are already installed")
	}

	files, err := p.fetcher.FetchAndExtract(ctx, p.asset, p.ExtractDir())
	if err != nil {
		return BuildPaths{}, err
	}

	p.opts.logger.Info("prebuilt libraries installed",
		zap.String("url", p.asset.URL()),
		zap.Int("files", len(files)),
		zap.String("lib_path", p.Paths().LibPath))

	p.state = Installed
	return p.Paths(), nil
}

package native

import (
	"context"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/executor"
	"github.com/accessful-ai/webrtc-audio-processing/fetch"
	"github.com/accessful-ai/webrtc-audio-processing/fs"
)

// Strategy provisions the native library for one platform family.
type Strategy interface {
	// Name identifies the strategy in logs and build stamps.
	Name() string

	// Paths reports where the library will be once Provision succeeds.
	Paths() BuildPaths

	// Fingerprint lists the strategy's own inputs (tools, arguments, URLs)
	// that a build stamp must cover besides the source tree.
	Fingerprint() []string

	// Provision produces the library.
	Provision(ctx context.Context) (BuildPaths, error)
}

// Option configures a strategy.
type Option func(*options)

type options struct {
	fs     billy.Filesystem
	logger *zap.Logger
}

func defaultOptions() *options {
	return &options{
		fs:     fs.Host(),
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFilesystem sets the filesystem the strategy creates directories on.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// Select returns the strategy for cfg.Target: the prebuilt download on
// Windows, a meson build from source everywhere else.
//
//nolint:ireturn // the strategy is chosen at runtime.
func Select(cfg *config.Config, runner executor.Runner, fetcher *fetch.Fetcher, opts ...Option) Strategy {
	if cfg.Target.IsWindows() {
		return NewPrebuilt(cfg, fetcher, opts...)
	}
	return NewFromSource(cfg, runner, opts...)
}

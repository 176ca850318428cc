// Package pipeline runs the provisioning steps in order and produces the
// link directives for the consuming crate.
//
// The steps are strictly sequential: provision the source, produce the native
// library, compile the wrapper, generate bindings, optionally patch them. The
// first failure aborts the run. A build stamp in the output directory lets a
// run with unchanged inputs skip the first two steps.
package pipeline

import (
	"context"
	"time"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/bindgen"
	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/executor"
	"github.com/accessful-ai/webrtc-audio-processing/fetch"
	"github.com/accessful-ai/webrtc-audio-processing/fs"
	"github.com/accessful-ai/webrtc-audio-processing/native"
	"github.com/accessful-ai/webrtc-audio-processing/source"
	"github.com/accessful-ai/webrtc-audio-processing/wrapper"
)

// Result describes a completed run.
type Result struct {
	Strategy   string
	Paths      native.BuildPaths
	Wrapper    *wrapper.Artifact
	Bindings   *bindgen.BindingFile
	Directives []string

	// Skipped is set when a matching build stamp made the source and native
	// steps unnecessary.
	Skipped bool
}

// Option configures Run.
type Option func(*runner)

type runner struct {
	fs      billy.Filesystem
	exec    executor.Runner
	fetcher *fetch.Fetcher
	logger  *zap.Logger
	now     func() time.Time
}

// WithFilesystem sets the filesystem for source provisioning and stamps.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(r *runner) { r.fs = fsys }
}

// WithRunner sets the subprocess runner.
func WithRunner(x executor.Runner) Option {
	return func(r *runner) { r.exec = x }
}

// WithFetcher sets the release fetcher used by the prebuilt strategy.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(r *runner) { r.fetcher = f }
}

// WithLogger sets the logger passed to every step.
func WithLogger(l *zap.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock sets the time source for stamps.
func WithClock(now func() time.Time) Option {
	return func(r *runner) { r.now = now }
}

// Run provisions everything cfg asks for. cfg must already be validated.
func Run(ctx context.Context, cfg *config.Config, opts ...Option) (*Result, error) {
	r := &runner{
		fs:     fs.Host(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.exec == nil {
		r.exec = executor.NewOSRunner(r.logger.Named("exec"))
	}
	if r.fetcher == nil {
		r.fetcher = fetch.New(
			fetch.WithFilesystem(r.fs),
			fetch.WithDownloadDir(cfg.DownloadDir),
			fetch.WithLogger(r.logger.Named("fetch")))
	}
	return r.run(ctx, cfg)
}

func (r *runner) run(ctx context.Context, cfg *config.Config) (*Result, error) {
	r.logger.Info("provisioning webrtc-audio-processing",
		zap.String("target", cfg.Target.String()),
		zap.String("out_dir", cfg.OutDir))

	strategy := native.Select(cfg, r.exec, r.fetcher,
		native.WithFilesystem(r.fs),
		native.WithLogger(r.logger.Named("native")))

	paths, skipped, err := r.provisionNative(ctx, cfg, strategy)
	if err != nil {
		return nil, err
	}

	compiler := wrapper.NewCompiler(cfg, r.exec, wrapper.WithLogger(r.logger.Named("wrapper")))
	artifact, err := compiler.Compile(ctx, paths)
	if err != nil {
		return nil, err
	}

	generator := bindgen.NewGenerator(cfg, r.exec, bindgen.WithLogger(r.logger.Named("bindgen")))
	bindings, err := generator.Generate(ctx, cfg.WrapperHeader, paths.IncludePath)
	if err != nil {
		return nil, err
	}

	if cfg.DeriveSerde && !generator.EmitsSerde() {
		r.logger.Info("adding serde derives", zap.String("path", bindings.Path))
		if err := bindgen.AddSerialization(bindings.Path); err != nil {
			return nil, err
		}
	}

	return &Result{
		Strategy:   strategy.Name(),
		Paths:      paths,
		Wrapper:    artifact,
		Bindings:   bindings,
		Directives: LinkDirectives(cfg.Target, paths, artifact),
		Skipped:    skipped,
	}, nil
}

// provisionNative copies the source and runs the strategy unless the build
// stamp shows the same inputs already produced valid paths.
func (r *runner) provisionNative(ctx context.Context, cfg *config.Config, strategy native.Strategy) (native.BuildPaths, bool, error) {
	provisioner := source.NewProvisioner(r.fs, cfg.OutDir, source.WithLogger(r.logger.Named("source")))
	if err := provisioner.Check(cfg.BundledSource); err != nil {
		return native.BuildPaths{}, false, err
	}

	inputs := native.StampInputs{
		Strategy:    strategy.Name(),
		Target:      cfg.Target.String(),
		Fingerprint: strategy.Fingerprint(),
		SourceDir:   cfg.BundledSource,
	}
	digest, err := native.ComputeDigest(ctx, r.fs, inputs)
	if err != nil {
		return native.BuildPaths{}, false, err
	}

	if !cfg.Force {
		stamp, err := native.ReadStamp(r.fs, cfg.StampFile())
		if err != nil {
			r.logger.Warn("ignoring unreadable build stamp", zap.Error(err))
		}
		if stamp.Matches(digest) && strategy.Paths().Validate(r.fs) == nil {
			r.logger.Info("native library is up to date",
				zap.String("strategy", strategy.Name()),
				zap.String("digest", digest))
			return strategy.Paths(), true, nil
		}
	}

	if err := native.RemoveStamp(r.fs, cfg.StampFile()); err != nil {
		return native.BuildPaths{}, false, err
	}

	if _, err := provisioner.Ensure(ctx, cfg.BundledSource); err != nil {
		return native.BuildPaths{}, false, err
	}

	paths, err := strategy.Provision(ctx)
	if err != nil {
		return native.BuildPaths{}, false, err
	}
	if err := paths.Validate(r.fs); err != nil {
		return native.BuildPaths{}, false, err
	}

	stamp := native.Stamp{
		Version:   native.StampVersion,
		Digest:    digest,
		Strategy:  strategy.Name(),
		Target:    cfg.Target.String(),
		CreatedAt: r.now().UTC(),
	}
	if err := native.WriteStamp(r.fs, cfg.StampFile(), stamp); err != nil {
		return native.BuildPaths{}, false, err
	}
	return paths, false, nil
}

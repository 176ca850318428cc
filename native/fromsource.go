package native

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/errors"
	"github.com/accessful-ai/webrtc-audio-processing/executor"
)

// State is the progress of a source build.
type State int

const (
	NotConfigured State = iota
	Configured
	Built
	Installed
)

func (s State) String() string {
	switch s {
	case NotConfigured:
		return "not-configured"
	case Configured:
		return "configured"
	case Built:
		return "built"
	case Installed:
		return "installed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// mesonArgs configures a static, ninja-backed build installed at the root of DESTDIR.
var mesonArgs = []string{"setup", "..", "--prefix=/", "-Ddefault_library=static", "--backend=ninja"}

// FromSource builds the provisioned source tree with meson and ninja.
type FromSource struct {
	root    string
	tools   config.Tools
	verbose bool
	runner  executor.Runner
	opts    *options
	state   State
}

// NewFromSource returns the source build strategy for cfg.
func NewFromSource(cfg *config.Config, runner executor.Runner, opts ...Option) *FromSource {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &FromSource{
		root:    cfg.ProvisionedRoot(),
		tools:   cfg.Tools,
		verbose: cfg.Verbose,
		runner:  runner,
		opts:    o,
	}
}

// Name implements Strategy.
func (s *FromSource) Name() string { return "from-source" }

// State returns the current build state.
func (s *FromSource) State() State { return s.state }

// BuildDir is the meson build directory inside the provisioned source.
func (s *FromSource) BuildDir() string { return filepath.Join(s.root, "build") }

// Paths implements Strategy.
func (s *FromSource) Paths() BuildPaths {
	return BuildPaths{
		IncludePath: s.root,
		LibPath:     filepath.Join(s.root, "lib"),
	}
}

// Fingerprint implements Strategy.
func (s *FromSource) Fingerprint() []string {
	return []string{
		s.tools.Meson + " " + strings.Join(mesonArgs, " "),
		s.tools.Ninja,
		s.tools.Ninja + " install",
	}
}

// Provision implements Strategy: preflight, configure, build, install.
func (s *FromSource) Provision(ctx context.Context) (BuildPaths, error) {
	if err := s.Preflight(); err != nil {
		return BuildPaths{}, err
	}
	for _, step := range []func(context.Context) error{s.Configure, s.Build, s.Install} {
		if err := step(ctx); err != nil {
			return BuildPaths{}, err
		}
	}
	return s.Paths(), nil
}

// Preflight checks that meson and ninja can be found.
func (s *FromSource) Preflight() error {
	for _, tool := range []string{s.tools.Meson, s.tools.Ninja} {
		if _, err := s.runner.LookPath(tool); err != nil {
			return errors.BuildTool("native.preflight", tool, "", "", err)
		}
	}
	return nil
}

// Configure runs meson setup in the build directory, creating it if needed.
func (s *FromSource) Configure(ctx context.Context) error {
	if err := s.expect(NotConfigured, Configured); err != nil {
		return err
	}
	if err := s.opts.fs.MkdirAll(s.BuildDir(), 0o755); err != nil {
		return fmt.Errorf("create build dir %s: %w", s.BuildDir(), err)
	}

	if err := s.run(ctx, "native.configure", s.tools.Meson, s.tools.Meson, mesonArgs); err != nil {
		return err
	}
	s.state = Configured
	return nil
}

// Build runs ninja in the build directory.
func (s *FromSource) Build(ctx context.Context) error {
	if err := s.expect(Configured, Built); err != nil {
		return err
	}
	if err := s.run(ctx, "native.build", s.tools.Ninja, s.tools.Ninja, nil); err != nil {
		return err
	}
	s.state = Built
	return nil
}

// Install runs ninja install with DESTDIR pointing at the provisioned source,
// which puts the libraries under <root>/lib.
func (s *FromSource) Install(ctx context.Context) error {
	if err := s.expect(Built, Installed); err != nil {
		return err
	}
	err := s.run(ctx, "native.install", s.tools.Ninja+" install", s.tools.Ninja, []string{"install"},
		executor.WithEnvVar("DESTDIR", s.root))
	if err != nil {
		return err
	}
	s.state = Installed
	return nil
}

func (s *FromSource) expect(from, to State) error {
	if s.state != from {
		return errors.Internal("native.transition",
			fmt.Sprintf("cannot move to %s from %s, expected %s", to, s.state, from))
	}
	return nil
}

func (s *FromSource) run(ctx context.Context, op, tool, program string, args []string, extra ...executor.Option) error {
	s.opts.logger.Info("running build tool",
		zap.String("tool", tool),
		zap.String("dir", s.BuildDir()))

	opts := append([]executor.Option{
		executor.WithWorkingDir(s.BuildDir()),
		executor.WithCapture(true, true),
		executor.WithConsoleRedirect(s.verbose),
	}, extra...)

	result, err := s.runner.Run(ctx, program, args, opts...)
	if err == nil && result.Success() {
		return nil
	}

	var stdout, stderr string
	if result != nil {
		stdout, stderr = result.Stdout, result.Stderr
		if err == nil {
			err = fmt.Errorf("exit status %d", result.ExitCode)
		}
	}
	return errors.BuildTool(op, tool, stdout, stderr, err)
}

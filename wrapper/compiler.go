// Package wrapper compiles the C++ shim that exposes the native library's
// audio processing API, and archives it as a static library for linking.
package wrapper

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/accessful-ai/webrtc-audio-processing/config"
	"github.com/accessful-ai/webrtc-audio-processing/errors"
	"github.com/accessful-ai/webrtc-audio-processing/executor"
	"github.com/accessful-ai/webrtc-audio-processing/native"
)

// LibraryName is the link name of the compiled shim.
const LibraryName = "webrtc_audio_processing_wrapper"

// optionalFlags are passed only when the compiler accepts them.
var optionalFlags = []string{
	"-Wno-unused-parameter",
	"-Wno-deprecated-declarations",
	"-std=c++11",
}

// windowsDefines make the native headers select their Win32 code paths.
var windowsDefines = []string{
	"WEBRTC_WIN",
	"_WIN32",
	"__STRICT_ANSI__",
	"_WINSOCKAPI_",
	"NOMINMAX",
	"_USE_MATH_DEFINES",
}

const probeProgram = "int main(void) { return 0; }\n"

// Artifact is the archived shim.
type Artifact struct {
	// Library is the path of the static archive.
	Library string

	// Dir is the directory to add to the linker search path.
	Dir string

	// Name is the link name (without "lib" prefix or extension).
	Name string
}

// Compiler drives the C++ compiler and archiver.
type Compiler struct {
	runner           executor.Runner
	tools            config.Tools
	target           config.Target
	deploymentTarget string
	source           string
	outDir           string
	verbose          bool
	logger           *zap.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCompiler returns a Compiler for cfg.
func NewCompiler(cfg *config.Config, runner executor.Runner, opts ...Option) *Compiler {
	c := &Compiler{
		runner:           runner,
		tools:            cfg.Tools,
		target:           cfg.Target,
		deploymentTarget: cfg.DeploymentTarget,
		source:           cfg.WrapperSource,
		outDir:           cfg.OutDir,
		verbose:          cfg.Verbose,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds the shim against paths.IncludePath and archives the object
// into <out>/lib<LibraryName>.a.
func (c *Compiler) Compile(ctx context.Context, paths native.BuildPaths) (*Artifact, error) {
	args, err := c.Args(ctx, paths)
	if err != nil {
		return nil, err
	}

	c.logger.Info("compiling wrapper", zap.String("source", c.source))
	if err := c.run(ctx, "wrapper.compile", c.tools.CXX, args); err != nil {
		return nil, err
	}

	lib := filepath.Join(c.outDir, "lib"+LibraryName+".a")
	if err := c.run(ctx, "wrapper.archive", c.tools.AR, []string{"crs", lib, c.objectPath()}); err != nil {
		return nil, err
	}

	return &Artifact{Library: lib, Dir: c.outDir, Name: LibraryName}, nil
}

// Args returns the full compiler command line for the shim.
func (c *Compiler) Args(ctx context.Context, paths native.BuildPaths) ([]string, error) {
	var args []string

	if c.target.IsApple() {
		v, err := DeploymentTarget(c.target.Arch, c.deploymentTarget)
		if err != nil {
			return nil, err
		}
		args = append(args, "-mmacos-version-min="+v)
	}

	flags, err := c.SupportedFlags(ctx)
	if err != nil {
		return nil, err
	}
	args = append(args, flags...)

	if c.target.IsWindows() {
		for _, d := range windowsDefines {
			args = append(args, "-D"+d)
		}
	} else {
		args = append(args, "-fPIC")
	}

	args = append(args,
		"-I"+paths.IncludePath,
		"-c", c.source,
		"-o", c.objectPath(),
	)
	return args, nil
}

// SupportedFlags probes each optional flag with a syntax-only compile and
// keeps those the compiler accepts.
func (c *Compiler) SupportedFlags(ctx context.Context) ([]string, error) {
	var out []string
	for _, flag := range optionalFlags {
		result, err := c.runner.Run(ctx, c.tools.CXX,
			[]string{"-x", "c++", "-fsyntax-only", "-Werror", flag, "-"},
			executor.WithInput(probeProgram),
			executor.WithCapture(true, true))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil && result.Success() {
			out = append(out, flag)
			continue
		}
		c.logger.Debug("compiler flag not supported", zap.String("flag", flag))
	}
	return out, nil
}

func (c *Compiler) objectPath() string {
	return filepath.Join(c.outDir, "wrapper.o")
}

func (c *Compiler) run(ctx context.Context, op, program string, args []string) error {
	result, err := c.runner.Run(ctx, program, args,
		executor.WithCapture(true, true),
		executor.WithConsoleRedirect(c.verbose))
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
	return errors.BuildTool(op, program, stdout, stderr, err)
}

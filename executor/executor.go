// Package executor runs the external build tools of the provisioning pipeline
// (meson, ninja, the C++ compiler, ar, bindgen) with output capture, working
// directory and environment overrides, and context support for cancellation.
//
// Commands are never retried: a failed tool invocation is fatal to the pipeline.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Result holds the output and error from a command execution
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// Success reports whether the command ran and exited with status zero.
func (r *Result) Success() bool {
	return r != nil && r.Err == nil && r.ExitCode == 0
}

// Runner starts arbitrary programs. Pipeline components depend on a Runner so
// tests can substitute a recorder for real subprocesses.
type Runner interface {
	// Run executes program with args and returns its result.
	// A non-zero exit is reported both in Result.ExitCode and as an error.
	Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)

	// LookPath resolves program the way the operating system would.
	LookPath(program string) (string, error)
}

// CommandExecutor runs a single program with fixed arguments.
type CommandExecutor struct {
	program string
	args    []string
	options *Options
}

// Options configures command execution behavior
type Options struct {
	// Output handling
	CaptureStdout     bool
	CaptureStderr     bool
	RedirectToConsole bool

	// Working directory
	WorkingDir string

	// Environment variables (appended to current env)
	Env map[string]string

	// Input is written to the command's stdin when non-empty.
	Input string
}

// Option is a function that modifies Options
type Option func(*Options)

// DefaultOptions returns default execution options
func DefaultOptions() *Options {
	return &Options{
		CaptureStdout:     true,
		CaptureStderr:     true,
		RedirectToConsole: false,
		Env:               make(map[string]string),
	}
}

// ResolveOptions applies opts on top of DefaultOptions.
func ResolveOptions(opts ...Option) *Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// New creates a new CommandExecutor
func New(program string, args ...string) *CommandExecutor {
	return &CommandExecutor{
		program: program,
		args:    args,
		options: DefaultOptions(),
	}
}

// Execute runs the command. A non-zero exit is returned as an error alongside
// the populated Result.
func (c *CommandExecutor) Execute(ctx context.Context, opts ...Option) (*Result, error) {
	options := c.mergeOptions(opts...)

	cmd := exec.CommandContext(ctx, c.program, c.args...)

	c.setupCommand(cmd, options)
	stdoutBuf, stderrBuf := c.setupOutputCapture(cmd, options)

	err := cmd.Run()

	result := c.createResult(stdoutBuf, stderrBuf, err)
	if err != nil {
		return result, fmt.Errorf("command execution failed: %w", err)
	}
	return result, nil
}

// String renders the command line, for logs.
func (c *CommandExecutor) String() string {
	return strings.Join(append([]string{c.program}, c.args...), " ")
}

// setupCommand configures the exec.Cmd with working directory, environment, and input
func (c *CommandExecutor) setupCommand(cmd *exec.Cmd, options *Options) {
	if options.WorkingDir != "" {
		cmd.Dir = options.WorkingDir
	}

	if len(options.Env) > 0 {
		cmd.Env = os.Environ()
		keys := make([]string, 0, len(options.Env))
		for k := range options.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, options.Env[k]))
		}
	}

	if options.Input != "" {
		cmd.Stdin = strings.NewReader(options.Input)
	}
}

// setupOutputCapture configures stdout and stderr writers for the command
func (c *CommandExecutor) setupOutputCapture(cmd *exec.Cmd, options *Options) (*bytes.Buffer, *bytes.Buffer) {
	var stdoutBuf, stderrBuf bytes.Buffer

	stdoutWriters := []io.Writer{}
	if options.CaptureStdout {
		stdoutWriters = append(stdoutWriters, &stdoutBuf)
	}
	if options.RedirectToConsole {
		stdoutWriters = append(stdoutWriters, os.Stderr)
	}
	if len(stdoutWriters) > 0 {
		cmd.Stdout = io.MultiWriter(stdoutWriters...)
	}

	stderrWriters := []io.Writer{}
	if options.CaptureStderr {
		stderrWriters = append(stderrWriters, &stderrBuf)
	}
	if options.RedirectToConsole {
		stderrWriters = append(stderrWriters, os.Stderr)
	}
	if len(stderrWriters) > 0 {
		cmd.Stderr = io.MultiWriter(stderrWriters...)
	}

	return &stdoutBuf, &stderrBuf
}

// createResult creates a Result from command execution and error
func (c *CommandExecutor) createResult(stdoutBuf, stderrBuf *bytes.Buffer, err error) *Result {
	result := &Result{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
		Err:    err,
	}

	var exitErr *exec.ExitError
	switch {
	case err != nil && errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err == nil:
		result.ExitCode = 0
	default:
		result.ExitCode = -1
	}

	return result
}

func (c *CommandExecutor) mergeOptions(opts ...Option) *Options {
	merged := *c.options
	merged.Env = make(map[string]string, len(c.options.Env))
	for k, v := range c.options.Env {
		merged.Env[k] = v
	}

	for _, opt := range opts {
		opt(&merged)
	}

	return &merged
}

// OSRunner is the Runner backed by real subprocesses.
type OSRunner struct {
	logger *zap.Logger
}

// NewOSRunner returns a Runner that executes programs on the host.
func NewOSRunner(logger *zap.Logger) *OSRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OSRunner{logger: logger}
}

// Run implements Runner.
func (r *OSRunner) Run(ctx context.Context, program string, args []string, opts ...Option) (*Result, error) {
	cmd := New(program, args...)
	options := ResolveOptions(opts...)
	r.logger.Debug("running command",
		zap.String("command", cmd.String()),
		zap.String("dir", options.WorkingDir),
		zap.Any("env", options.Env))

	result, err := cmd.Execute(ctx, opts...)
	if err != nil {
		r.logger.Debug("command failed",
			zap.String("command", cmd.String()),
			zap.Int("exit_code", result.ExitCode),
			zap.Error(err))
	}
	return result, err
}

// LookPath implements Runner.
func (r *OSRunner) LookPath(program string) (string, error) {
	path, err := exec.LookPath(program)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", program, err)
	}
	return path, nil
}

// Option functions for fluent configuration

// WithCapture configures output capture
func WithCapture(stdout, stderr bool) Option {
	return func(o *Options) {
		o.CaptureStdout = stdout
		o.CaptureStderr = stderr
	}
}

// WithConsoleRedirect enables/disables mirroring output to the console (stderr)
func WithConsoleRedirect(redirect bool) Option {
	return func(o *Options) {
		o.RedirectToConsole = redirect
	}
}

// WithWorkingDir sets the working directory
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnvVar adds a single environment variable
func WithEnvVar(key, value string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string)
		}
		o.Env[key] = value
	}
}

// WithInput feeds input to the command's stdin
func WithInput(input string) Option {
	return func(o *Options) {
		o.Input = input
	}
}

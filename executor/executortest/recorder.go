// Package executortest provides a recording executor.Runner for tests.
package executortest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/accessful-ai/webrtc-audio-processing/executor"
)

// Call is one recorded Run invocation.
type Call struct {
	Program string
	Args    []string
	Options *executor.Options
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Program + " " + strings.Join(c.Args, " "))
}

// Recorder implements executor.Runner without starting processes.
// RunFunc, when set, decides the result of each call; otherwise every call succeeds.
type Recorder struct {
	RunFunc func(call Call) (*executor.Result, error)

	// Missing lists programs LookPath reports as absent.
	Missing []string

	mu    sync.Mutex
	calls []Call
}

// Run implements executor.Runner.
func (r *Recorder) Run(_ context.Context, program string, args []string, opts ...executor.Option) (*executor.Result, error) {
	call := Call{
		Program: program,
		Args:    append([]string(nil), args...),
		Options: executor.ResolveOptions(opts...),
	}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	if r.RunFunc != nil {
		return r.RunFunc(call)
	}
	return &executor.Result{ExitCode: 0}, nil
}

// LookPath implements executor.Runner.
func (r *Recorder) LookPath(program string) (string, error) {
	for _, m := range r.Missing {
		if m == program {
			return "", fmt.Errorf("%s not found in PATH", program)
		}
	}
	return "/usr/bin/" + program, nil
}

// Calls returns a copy of the recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Commands returns the recorded calls rendered as command lines.
func (r *Recorder) Commands() []string {
	calls := r.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.String())
	}
	return out
}

// Fail builds a failed result the way a non-zero exit looks from a real process.
func Fail(exitCode int, stdout, stderr string) (*executor.Result, error) {
	err := fmt.Errorf("exit status %d", exitCode)
	return &executor.Result{
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Err:      err,
	}, fmt.Errorf("command execution failed: %w", err)
}

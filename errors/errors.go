package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Error represents a fatal pipeline failure with the context needed to diagnose it.
// It wraps the underlying cause, if any, so errors.Is and errors.As keep working.
type Error struct {
	// Code classifies the failure.
	Code ErrorCode

	// Op is the pipeline step that failed (e.g. "source.ensure", "native.configure").
	Op string

	// Message is a short human readable description.
	Message string

	// Remediation lists user-actionable steps, printed verbatim.
	Remediation []string

	// Tool is the external program that failed (build tool errors only).
	Tool string

	// Stdout and Stderr are the captured output streams of a failed subprocess.
	Stdout string
	Stderr string

	// Status is the HTTP status code of a failed download.
	Status int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	default:
		b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " ")))
	}
	if e.Tool != "" {
		fmt.Fprintf(&b, " (%s)", e.Tool)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error carrying the same code.
// This lets callers match against the sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks, one per code.
var (
	ErrEmptySource       = &Error{Code: CodeEmptySource}
	ErrBuildTool         = &Error{Code: CodeBuildTool}
	ErrUnsupportedArch   = &Error{Code: CodeUnsupportedArch}
	ErrDownload          = &Error{Code: CodeDownload}
	ErrArchive           = &Error{Code: CodeArchive}
	ErrBindingGeneration = &Error{Code: CodeBindingGeneration}
	ErrPatch             = &Error{Code: CodePatch}
	ErrInvalidConfig     = &Error{Code: CodeInvalidConfig}
	ErrInternal          = &Error{Code: CodeInternal}
)

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// EmptySource reports that the bundled source directory has no entries.
func EmptySource(path string) *Error {
	return &Error{
		Code:    CodeEmptySource,
		Op:      "source.ensure",
		Message: fmt.Sprintf("bundled source directory %s is empty", path),
		Remediation: []string{
			"The webrtc-audio-processing source directory is empty.",
			"It is a git submodule: clone this repository recursively, or run",
			"`git submodule update --init --recursive`, or fetch it with",
			"`webrtc-provision source fetch`.",
		},
	}
}

// BuildTool reports a subprocess that exited unsuccessfully.
func BuildTool(op, tool, stdout, stderr string, err error) *Error {
	return &Error{
		Code:    CodeBuildTool,
		Op:      op,
		Message: "build tool failed",
		Tool:    tool,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}

// UnsupportedArch reports an architecture with no default deployment target.
func UnsupportedArch(arch string) *Error {
	return &Error{
		Code:    CodeUnsupportedArch,
		Op:      "wrapper.deployment_target",
		Message: fmt.Sprintf("unknown arch: %s", arch),
	}
}

// Download reports a release asset download that did not answer 200.
func Download(url string, status int) *Error {
	return &Error{
		Code:    CodeDownload,
		Op:      "fetch.download",
		Message: fmt.Sprintf("failed to download the asset %s", url),
		Status:  status,
	}
}

// Archive reports an archive that could not be opened, read or written.
func Archive(op string, err error) *Error {
	return &Error{
		Code:    CodeArchive,
		Op:      op,
		Message: "archive extraction failed",
		Err:     err,
	}
}

// BindingGeneration reports a failed binding generator run.
func BindingGeneration(stdout, stderr string, err error) *Error {
	return &Error{
		Code:    CodeBindingGeneration,
		Op:      "bindgen.generate",
		Message: "unable to generate bindings",
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}

// Patch reports an I/O failure while rewriting a binding file.
func Patch(path string, err error) *Error {
	return &Error{
		Code:    CodePatch,
		Op:      "bindgen.add_serialization",
		Message: fmt.Sprintf("failed to modify derive macros in %s", path),
		Err:     err,
	}
}

// InvalidConfig reports a configuration value that cannot be used.
func InvalidConfig(message string, err error) *Error {
	return &Error{
		Code:    CodeInvalidConfig,
		Op:      "config",
		Message: message,
		Err:     err,
	}
}

// Internal reports a violated internal invariant.
func Internal(op, message string) *Error {
	return &Error{
		Code:    CodeInternal,
		Op:      op,
		Message: message,
	}
}

// Diagnostic renders err as the text printed before the pipeline aborts.
// Remediation and captured subprocess output are included unmodified.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "error: %v\n", err)

	var e *Error
	if !stderrors.As(err, &e) {
		return b.String()
	}

	for _, line := range e.Remediation {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if e.Stderr != "" {
		b.WriteString("--- stderr ---\n")
		b.WriteString(e.Stderr)
		if !strings.HasSuffix(e.Stderr, "\n") {
			b.WriteByte('\n')
		}
	}
	if e.Stdout != "" {
		b.WriteString("--- stdout ---\n")
		b.WriteString(e.Stdout)
		if !strings.HasSuffix(e.Stdout, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

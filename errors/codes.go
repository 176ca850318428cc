// Package errors provides the fatal error taxonomy of the provisioning pipeline.
// It extends Go's standard error handling with structured error codes and the
// captured context (subprocess streams, HTTP status) that is surfaced to the user
// before the pipeline aborts.
package errors

// ErrorCode represents a specific failure condition in the provisioning pipeline.
// Error codes are string-based for debuggability and stable log output.
type ErrorCode string

const (
	// Source errors.

	// CodeEmptySource indicates the bundled native source tree has no entries.
	CodeEmptySource ErrorCode = "EMPTY_SOURCE"

	// Build errors.

	// CodeBuildTool indicates a configure, build, install or compile subprocess failed.
	CodeBuildTool ErrorCode = "BUILD_TOOL_FAILED"

	// CodeUnsupportedArch indicates no deployment target default exists for an architecture.
	CodeUnsupportedArch ErrorCode = "UNSUPPORTED_ARCHITECTURE"

	// Network errors.

	// CodeDownload indicates a release asset download did not answer with HTTP 200.
	CodeDownload ErrorCode = "DOWNLOAD_FAILED"

	// CodeArchive indicates a downloaded archive could not be opened, read or extracted.
	CodeArchive ErrorCode = "ARCHIVE_FAILED"

	// Binding errors.

	// CodeBindingGeneration indicates header parsing or binding generation failed.
	CodeBindingGeneration ErrorCode = "BINDING_GENERATION_FAILED"

	// CodePatch indicates an I/O failure while rewriting the binding file.
	CodePatch ErrorCode = "PATCH_FAILED"

	// System errors.

	// CodeInvalidConfig indicates a configuration error prevents the pipeline from starting.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeInternal indicates an internal invariant was violated.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

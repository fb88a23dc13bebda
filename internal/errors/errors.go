// Package errors provides the structured error types used across the call
// report pipeline. Errors carry a type from the pipeline taxonomy so that
// callers can distinguish files that were skipped (unrecognized input) from
// files that failed (decode or parse errors) and from failures that must
// abort the run (setup errors).
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies a pipeline error.
type ErrorType string

const (
	// ErrorTypeUnrecognized marks input the pipeline does not understand:
	// a filename with no period pattern, an archive with no usable member,
	// a table without an identifier column. The file is skipped and the
	// run continues.
	ErrorTypeUnrecognized ErrorType = "unrecognized"

	// ErrorTypeParse marks input that matched but could not be read:
	// exhausted encodings, malformed structure, truncated records. Counted
	// separately from unrecognized input.
	ErrorTypeParse ErrorType = "parse"

	// ErrorTypeSetup marks failures that abort the run before processing
	// begins, such as missing input directories or uncreatable output
	// directories.
	ErrorTypeSetup ErrorType = "setup"

	// ErrorTypeWrite marks a failed canonical artifact write. The period is
	// treated as failed; no partial artifact may remain visible.
	ErrorTypeWrite ErrorType = "write"

	// ErrorTypeDownload marks a failed fetch of one remote file. Per-file,
	// never fatal to the batch.
	ErrorTypeDownload ErrorType = "download"
)

// PipelineError is the structured error type for per-file and setup
// failures.
type PipelineError struct {
	Type    ErrorType
	Stage   string
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e == nil {
		return "unknown pipeline error"
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	switch {
	case e.Stage != "" && e.Path != "":
		return fmt.Sprintf("[%s] %s: %s: %s", e.Type, e.Stage, e.Path, msg)
	case e.Stage != "":
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Stage, msg)
	case e.Path != "":
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Path, msg)
	default:
		return fmt.Sprintf("[%s] %s", e.Type, msg)
	}
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewUnrecognized creates an unrecognized-input error.
func NewUnrecognized(stage, path, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeUnrecognized,
		Stage:   stage,
		Path:    path,
		Message: message,
	}
}

// NewParse creates a parse-failure error.
func NewParse(stage, path string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeParse,
		Stage:   stage,
		Path:    path,
		Message: "failed to parse",
		Cause:   cause,
	}
}

// NewSetup creates a fatal setup error.
func NewSetup(message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeSetup,
		Message: message,
		Cause:   cause,
	}
}

// NewWrite creates a write-failure error for a canonical artifact.
func NewWrite(path string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeWrite,
		Path:    path,
		Message: "failed to write artifact",
		Cause:   cause,
	}
}

// NewDownload creates a per-file download error.
func NewDownload(url string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeDownload,
		Path:    url,
		Message: "download failed",
		Cause:   cause,
	}
}

// GetErrorType returns the taxonomy type of err, unwrapping as needed.
// Errors outside the taxonomy report as parse failures, the conservative
// per-file default.
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Type
	}
	return ErrorTypeParse
}

// IsUnrecognized reports whether err classifies as unrecognized input.
func IsUnrecognized(err error) bool {
	return GetErrorType(err) == ErrorTypeUnrecognized
}

// IsSetup reports whether err is fatal to the run.
func IsSetup(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe.Type == ErrorTypeSetup
	}
	return false
}

// WrapError attaches stage context to an error, preserving its taxonomy
// type when it already carries one.
func WrapError(err error, stage, message string) *PipelineError {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		if pe.Stage == "" {
			pe.Stage = stage
		}
		if message != "" {
			pe.Message = fmt.Sprintf("%s: %s", message, pe.Message)
		}
		return pe
	}
	return &PipelineError{
		Type:    ErrorTypeParse,
		Stage:   stage,
		Message: message,
		Cause:   err,
	}
}

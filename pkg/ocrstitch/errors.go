package ocrstitch

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports invalid or conflicting configuration. It is fatal and
// raised before any processing starts.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

// ToolMissingError reports that a required external binary could not be
// found in the search path. Fatal, raised at validation time.
type ToolMissingError struct {
	Tool string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("required program %q not found in PATH", e.Tool)
}

// WorkspaceError reports a failure to set up or tear down the working
// directory.
type WorkspaceError struct {
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s: %v", e.Path, e.Err)
}

func (e *WorkspaceError) Unwrap() error { return e.Err }

// ExecutionError reports an external command that could not be started,
// exited non-zero, or was cancelled. The caller decides whether it is fatal.
type ExecutionError struct {
	Name     string
	Args     []string
	ExitCode int // -1 when the process never ran
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("exec %s %s: %v", e.Name, strings.Join(e.Args, " "), e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Stage identifies the per-page pipeline step that failed.
type Stage string

const (
	StageExtract    Stage = "extract"
	StagePreprocess Stage = "preprocess"
	StageOCR        Stage = "ocr"
)

// PageError reports a recoverable per-page failure. The orchestrator logs
// it, skips the page, and continues with the rest of the document.
type PageError struct {
	Page  int
	Stage Stage
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d %s: %v", e.Page, e.Stage, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// MergeError reports a failure to combine per-page PDFs into the merged
// document. Fatal: the run aborts and no output file is produced.
type MergeError struct {
	Err error
}

func (e *MergeError) Error() string { return fmt.Sprintf("merge: %v", e.Err) }

func (e *MergeError) Unwrap() error { return e.Err }

// MetadataError reports a failure to dump or reattach document metadata.
// Fatal in the reattachment step.
type MetadataError struct {
	Err error
}

func (e *MetadataError) Error() string { return fmt.Sprintf("metadata: %v", e.Err) }

func (e *MetadataError) Unwrap() error { return e.Err }

// IsPageError reports whether err is a recoverable per-page failure.
func IsPageError(err error) bool {
	var pe *PageError
	return errors.As(err, &pe)
}

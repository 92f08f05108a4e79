package ocrstitch

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Cmd describes one external command invocation. Arguments are always an
// explicit vector; nothing is ever passed through a shell, so file names
// containing spaces or metacharacters need no quoting.
type Cmd struct {
	Name  string
	Args  []string
	Stdin io.Reader
	Dir   string

	// CombinedOutput folds stderr into Result.Stdout. Some tools, notably
	// tesseract --list-langs, print their useful output on stderr.
	CombinedOutput bool
}

// Result is the outcome of a completed external command.
type Result struct {
	Stdout   string
	ExitCode int
}

// Runner executes external commands, streaming their output line-by-line to
// the log and capturing stdout for the caller. Each invocation is bounded by
// Timeout; on expiry or context cancellation the child process is killed.
type Runner struct {
	Log     *zap.Logger
	Timeout time.Duration
}

// waitDelay bounds how long a finished invocation waits for output pipes
// held open by leaked grandchild processes.
const waitDelay = 3 * time.Second

// NewRunner returns a Runner logging to log.
func NewRunner(log *zap.Logger, timeout time.Duration) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{Log: log, Timeout: timeout}
}

// Run executes c and waits for it to finish. A missing binary, a non-zero
// exit, and a cancelled context all surface as *ExecutionError; the caller
// decides whether that aborts the run. The captured stdout is returned even
// on failure so diagnostics stay available.
func (r *Runner) Run(ctx context.Context, c Cmd) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	log := r.Log.With(zap.String("tool", c.Name))
	log.Debug("running", zap.Strings("args", c.Args))

	var stdout, stderr bytes.Buffer
	outSink := &lineWriter{capture: &stdout, log: log, stream: "stdout"}
	errSink := &lineWriter{log: log, stream: "stderr"}
	if c.CombinedOutput {
		errSink.capture = &stderr
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stdout = outSink
	cmd.Stderr = errSink
	cmd.WaitDelay = waitDelay

	runErr := cmd.Run()
	outSink.flush()
	errSink.flush()

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	result := Result{Stdout: stdout.String() + stderr.String(), ExitCode: exitCode}

	if runErr != nil {
		// Prefer the cancellation cause so a killed child reads as a
		// timeout, not as an opaque signal death.
		cause := runErr
		if ctx.Err() != nil {
			cause = ctx.Err()
		}
		return result, &ExecutionError{Name: c.Name, Args: c.Args, ExitCode: exitCode, Err: cause}
	}
	return result, nil
}

// lineWriter forwards command output to the log one line at a time and,
// when capture is set, keeps a verbatim copy. Each stream gets its own
// instance, so no locking is needed.
type lineWriter struct {
	capture *bytes.Buffer
	log     *zap.Logger
	stream  string
	partial bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	if w.capture != nil {
		w.capture.Write(p)
	}
	w.partial.Write(p)
	for {
		line, rest, found := bytes.Cut(w.partial.Bytes(), []byte{'\n'})
		if !found {
			break
		}
		w.log.Debug(w.stream, zap.ByteString("line", line))
		remainder := append([]byte(nil), rest...)
		w.partial.Reset()
		w.partial.Write(remainder)
	}
	return len(p), nil
}

// flush logs a trailing line that ended without a newline.
func (w *lineWriter) flush() {
	if w.partial.Len() > 0 {
		w.log.Debug(w.stream, zap.ByteString("line", w.partial.Bytes()))
		w.partial.Reset()
	}
}

// LookupTool verifies that a binary can be found in the search path.
func LookupTool(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return &ToolMissingError{Tool: name}
	}
	return nil
}

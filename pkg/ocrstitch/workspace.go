package ocrstitch

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Workspace is the working directory that holds every per-page artifact and
// the merged document for one pipeline run. The directory is exclusively
// owned by that run and removed on Close unless retention was requested.
type Workspace struct {
	dir  string
	keep bool
	log  *zap.Logger
}

// NewWorkspace creates the working directory. With a user-specified path the
// directory must not already exist; an empty path allocates a fresh
// directory under the system temp dir.
func NewWorkspace(path string, keep bool, log *zap.Logger) (*Workspace, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return nil, &WorkspaceError{Path: path, Err: fmt.Errorf("directory already exists")}
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, &WorkspaceError{Path: path, Err: err}
		}
		return &Workspace{dir: path, keep: keep, log: log}, nil
	}

	dir, err := os.MkdirTemp("", "ocrstitch-")
	if err != nil {
		return nil, &WorkspaceError{Path: dir, Err: err}
	}
	return &Workspace{dir: dir, keep: keep, log: log}, nil
}

// Dir returns the workspace directory path.
func (w *Workspace) Dir() string { return w.dir }

// Join returns the path of a named artifact inside the workspace.
func (w *Workspace) Join(name string) string { return filepath.Join(w.dir, name) }

// Keep reports whether intermediates are retained.
func (w *Workspace) Keep() bool { return w.keep }

// Close removes the workspace tree unless retention was requested. Safe to
// call from a defer on every exit path.
func (w *Workspace) Close() error {
	if w.keep {
		w.log.Info("keeping working directory", zap.String("dir", w.dir))
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return &WorkspaceError{Path: w.dir, Err: err}
	}
	return nil
}

// Remove deletes a single artifact, ignoring files that are already gone.
func (w *Workspace) Remove(name string) {
	if err := os.Remove(w.Join(name)); err != nil && !os.IsNotExist(err) {
		w.log.Warn("removing intermediate", zap.String("file", name), zap.Error(err))
	}
}

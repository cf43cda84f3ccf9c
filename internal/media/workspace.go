package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace is scoped local storage for one pipeline run. Every file created
// under it is removed by Close, whichever way the run ends. The directory
// name carries a random suffix, so two concurrent runs never share one.
type Workspace struct {
	dir string
}

// NewWorkspace creates a private temp directory for the given run id.
func NewWorkspace(id string) (*Workspace, error) {
	dir, err := os.MkdirTemp("", "lectureflow-"+sanitizeID(id)+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns an absolute path for a file inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Close removes the workspace and everything in it.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.dir)
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

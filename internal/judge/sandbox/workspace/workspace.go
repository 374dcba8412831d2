// Package workspace manages the per-invocation directory mounted into a sandbox.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Workspace is one exclusively owned job directory.
type Workspace struct {
	ID  string
	Dir string
}

// Create makes <root>/<jobID>. It fails if the directory already exists so a
// job id is never reused.
func Create(root, jobID string) (*Workspace, error) {
	if root == "" {
		return nil, appErr.ValidationError("work_root", "required")
	}
	if jobID == "" || strings.ContainsAny(jobID, `/\`) || jobID == "." || jobID == ".." {
		return nil, appErr.ValidationError("job_id", "invalid")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create work root failed")
	}
	dir := filepath.Join(root, jobID)
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace failed")
	}
	return &Workspace{ID: jobID, Dir: dir}, nil
}

// WriteFile writes content verbatim into the workspace.
func (w *Workspace) WriteFile(name, content string) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return appErr.ValidationError("file_name", "invalid")
	}
	if err := os.WriteFile(filepath.Join(w.Dir, name), []byte(content), 0644); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceError, "write %s failed", name)
	}
	return nil
}

// Cleanup removes the workspace. Failures are logged and swallowed.
func (w *Workspace) Cleanup(ctx context.Context) {
	if w == nil || w.Dir == "" {
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		logger.Warn(ctx, "remove workspace failed", zap.String("dir", w.Dir), zap.Error(err))
	}
}

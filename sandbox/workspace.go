package sandbox

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/observability"
)

// WorkspacePrefix starts the name of every workspace directory.
const WorkspacePrefix = "run_"

var sourceFilePattern = regexp.MustCompile(`^main\.[A-Za-z0-9]+$`)

// Workspace is the per-request directory holding the submitted source. It is
// the only writable path inside the sandbox.
type Workspace struct {
	Path      string
	RequestID string

	destroyed atomic.Bool
}

// WorkspaceManager creates and removes workspaces under a root directory.
type WorkspaceManager struct {
	logger  *zap.Logger
	fs      FileSystem
	root    string
	metrics *observability.Metrics
}

// WorkspaceOption defines a functional option for WorkspaceManager
type WorkspaceOption func(*WorkspaceManager)

// WithWorkspaceFileSystem sets the FileSystem for WorkspaceManager
func WithWorkspaceFileSystem(fs FileSystem) WorkspaceOption {
	return func(m *WorkspaceManager) {
		m.fs = fs
	}
}

// WithWorkspaceMetrics sets the metrics the manager reports to
func WithWorkspaceMetrics(metrics *observability.Metrics) WorkspaceOption {
	return func(m *WorkspaceManager) {
		m.metrics = metrics
	}
}

// NewWorkspaceManager creates a manager rooted at root. An empty root means
// the OS temporary directory.
func NewWorkspaceManager(logger *zap.Logger, root string, opts ...WorkspaceOption) *WorkspaceManager {
	m := &WorkspaceManager{
		logger: logger,
		fs:     &RealFileSystem{},
		root:   root,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Create allocates a new, empty, uniquely named workspace.
func (m *WorkspaceManager) Create() (*Workspace, error) {
	requestID := uuid.NewString()

	path, err := m.fs.MkdirTemp(m.root, WorkspacePrefix+requestID+"_")
	if err != nil {
		return nil, &WorkspaceError{Op: "create", Path: m.root, Err: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		if rmErr := m.fs.RemoveAll(path); rmErr != nil {
			m.logger.Error("failed to remove workspace", zap.String("path", path), zap.Error(rmErr))
		}
		return nil, &WorkspaceError{Op: "create", Path: path, Err: err}
	}

	m.metrics.WorkspaceCreated()
	m.logger.Debug("workspace created", zap.String("path", abs), zap.String("request_id", requestID))

	return &Workspace{Path: abs, RequestID: requestID}, nil
}

// WriteSource writes content verbatim to filename inside the workspace.
// Only canonical main.<ext> names are accepted.
func (m *WorkspaceManager) WriteSource(ws *Workspace, filename string, content []byte) error {
	if !sourceFilePattern.MatchString(filename) {
		return &WorkspaceError{Op: "write", Path: ws.Path, Err: fmt.Errorf("invalid source file name %q", filename)}
	}
	if ws.destroyed.Load() {
		return &WorkspaceError{Op: "write", Path: ws.Path, Err: fmt.Errorf("workspace already destroyed")}
	}

	path := filepath.Join(ws.Path, filename)
	if err := m.fs.WriteFile(path, content, FilePermission); err != nil {
		return &WorkspaceError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Destroy removes the workspace and everything in it. Only the first call
// for a workspace has any effect. Failures are logged and not returned.
func (m *WorkspaceManager) Destroy(ws *Workspace) {
	if ws == nil || !ws.destroyed.CompareAndSwap(false, true) {
		return
	}

	err := m.fs.RemoveAll(ws.Path)
	m.metrics.WorkspaceDestroyed(err != nil)
	if err != nil {
		m.logger.Error("failed to remove workspace",
			zap.String("path", ws.Path),
			zap.String("request_id", ws.RequestID),
			zap.Error(err))
		return
	}

	m.logger.Debug("workspace removed", zap.String("path", ws.Path), zap.String("request_id", ws.RequestID))
}

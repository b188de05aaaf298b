package sandbox

import (
	"context"
	"os"
	"time"
)

// ExecuteRequest represents the parameters for code execution
type ExecuteRequest struct {
	Language string
	Code     string
}

// ExecuteResult represents the result of code execution. Stdout and Stderr
// are what the guest program wrote; a non-zero ExitCode is the guest's own
// failure, not a service error.
type ExecuteResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// SandboxExecutor defines the interface for sandbox execution
type SandboxExecutor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// StatusFD is the descriptor on which a process started with
// Command.Status finds the status pipe.
const StatusFD = 3

// Command is a fully resolved process invocation.
type Command struct {
	Argv []string
	Dir  string
	Env  []string
	// Status opens a pipe on StatusFD. What the process writes there is
	// returned in ProcessOutput.Status.
	Status bool
}

// ProcessOutput is what a finished process left behind.
type ProcessOutput struct {
	Stdout   []byte
	Stderr   []byte
	Status   []byte
	ExitCode int
}

// ProcessRunner runs a command to completion. Implementations must stop the
// whole process tree when ctx is done and return a *LaunchError when the
// process could not be started.
type ProcessRunner interface {
	Run(ctx context.Context, cmd Command) (ProcessOutput, error)
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// File permission constants
const (
	DirPermission  = 0o700
	FilePermission = 0o600
)

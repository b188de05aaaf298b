package sandbox

import (
	"errors"
	"fmt"

	"github.com/isdmx/coderun/language"
)

// ErrTimeout is returned when the guest process did not exit before the deadline.
var ErrTimeout = errors.New("execution timed out")

// WorkspaceError reports a failure to create, write or remove a workspace.
type WorkspaceError struct {
	Op   string
	Path string
	Err  error
}

func (e *WorkspaceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("workspace %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WorkspaceError) Unwrap() error {
	return e.Err
}

// LaunchError reports that the sandbox process could not be started. It is
// never used for a guest program that started and then failed.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// UserMessage returns the message reported to the caller for an Execute
// error and whether the caller is at fault. Workspace and launch failures
// carry host details, so they are reported generically unless expose is set.
func UserMessage(err error, expose bool) (string, bool) {
	switch {
	case errors.Is(err, language.ErrUnsupported):
		return err.Error(), true
	case errors.Is(err, ErrTimeout):
		return ErrTimeout.Error(), true
	case expose:
		return err.Error(), false
	default:
		return "internal error", false
	}
}

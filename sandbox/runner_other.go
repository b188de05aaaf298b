//go:build !unix

package sandbox

import (
	"context"
	"errors"
	"time"
)

// RealProcessRunner is unavailable on this platform.
type RealProcessRunner struct {
	WaitDelay time.Duration
}

func (RealProcessRunner) Run(_ context.Context, c Command) (ProcessOutput, error) {
	path := ""
	if len(c.Argv) > 0 {
		path = c.Argv[0]
	}
	return ProcessOutput{}, &LaunchError{Path: path, Err: errors.New("sandboxed execution requires a unix host")}
}

//go:build unix

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// statusDrain bounds the read of the status pipe once the process is gone.
const statusDrain = 100 * time.Millisecond

// RealProcessRunner runs commands with os/exec. Each process gets its own
// process group so that cancellation kills everything it spawned.
type RealProcessRunner struct {
	// WaitDelay bounds how long Run waits for output pipes to close after
	// the process has exited or been killed.
	WaitDelay time.Duration
}

func (r RealProcessRunner) Run(ctx context.Context, c Command) (ProcessOutput, error) {
	if len(c.Argv) == 0 {
		return ProcessOutput{}, &LaunchError{Err: errors.New("empty command")}
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	if cmd.Env == nil {
		// nil would inherit the service environment
		cmd.Env = []string{}
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = r.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	var status *statusPipe
	if c.Status {
		var err error
		status, err = openStatusPipe()
		if err != nil {
			return ProcessOutput{}, &LaunchError{Path: c.Argv[0], Err: err}
		}
		defer status.Close()
		// ExtraFiles[0] becomes StatusFD in the child
		cmd.ExtraFiles = []*os.File{status.w}
	}

	if err := cmd.Start(); err != nil {
		return ProcessOutput{}, &LaunchError{Path: c.Argv[0], Err: err}
	}
	status.started()

	err := cmd.Wait()
	// anything left in the group outlived its parent
	_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)

	out := ProcessOutput{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Status:   status.collect(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.As(err, &exitErr):
	case errors.Is(err, exec.ErrWaitDelay):
		// the process exited but a descendant still held the output pipes
	default:
		return out, err
	}
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	return out, nil
}

// statusPipe carries what the child writes on StatusFD. A nil statusPipe is
// valid and collects nothing.
type statusPipe struct {
	r, w *os.File
	done chan []byte
}

func openStatusPipe() (*statusPipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &statusPipe{r: r, w: w, done: make(chan []byte, 1)}, nil
}

// started drops the parent's write end and begins reading.
func (p *statusPipe) started() {
	if p == nil {
		return
	}
	_ = p.w.Close()
	p.w = nil
	go func() {
		data, _ := io.ReadAll(p.r)
		p.done <- data
	}()
}

// collect returns everything written so far. Descendants still holding the
// write end do not block it for longer than statusDrain.
func (p *statusPipe) collect() []byte {
	if p == nil {
		return nil
	}
	_ = p.r.SetReadDeadline(time.Now().Add(statusDrain))
	return <-p.done
}

func (p *statusPipe) Close() {
	if p.w != nil {
		_ = p.w.Close()
	}
	_ = p.r.Close()
}

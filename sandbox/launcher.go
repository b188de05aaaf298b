package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/coderun/language"
)

// Launcher starts the interpreter for a source file, wrapped by the
// isolation tool, and enforces the execution deadline.
type Launcher struct {
	logger  *zap.Logger
	runner  ProcessRunner
	wrapper string
	timeout time.Duration
	env     []string
}

// LauncherOption defines a functional option for Launcher
type LauncherOption func(*Launcher)

// WithProcessRunner sets the ProcessRunner for Launcher
func WithProcessRunner(runner ProcessRunner) LauncherOption {
	return func(l *Launcher) {
		l.runner = runner
	}
}

// WithWrapper sets the isolation tool. Without one the interpreter runs
// directly on the host and profiles are ignored.
func WithWrapper(path string) LauncherOption {
	return func(l *Launcher) {
		l.wrapper = path
	}
}

// WithEnvironment sets the complete environment of the launched process.
func WithEnvironment(env []string) LauncherOption {
	return func(l *Launcher) {
		l.env = slices.Clone(env)
	}
}

// NewLauncher creates a launcher with the given deadline.
func NewLauncher(logger *zap.Logger, timeout time.Duration, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		logger:  logger,
		runner:  RealProcessRunner{},
		timeout: timeout,
		env:     []string{},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Argv returns the full command line for running filename.
func (l *Launcher) Argv(profile *Profile, recipe language.Recipe, filename string) []string {
	command := recipe.Command(filename)
	if l.wrapper == "" {
		return command
	}

	argv := []string{l.wrapper, "--json-status-fd", strconv.Itoa(StatusFD)}
	argv = append(argv, profile.Args()...)
	argv = append(argv, "--")
	return append(argv, command...)
}

// Launch runs the recipe against filename inside ws and waits for it to
// finish. Once started, the process is bounded only by the deadline: the
// caller cancelling ctx does not stop it early.
func (l *Launcher) Launch(
	ctx context.Context, profile *Profile, recipe language.Recipe, ws *Workspace, filename string,
) (ExecuteResult, error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	cmd := Command{
		Argv:   l.Argv(profile, recipe, filename),
		Dir:    ws.Path,
		Env:    slices.Clone(l.env),
		Status: l.wrapper != "",
	}

	l.logger.Debug("launching sandboxed process",
		zap.Strings("argv", cmd.Argv),
		zap.String("request_id", ws.RequestID))

	start := time.Now()
	out, err := l.runner.Run(runCtx, cmd)
	duration := time.Since(start)

	// Check if the error was due to timeout
	if runCtx.Err() == context.DeadlineExceeded {
		l.logger.Debug("sandboxed process timed out",
			zap.Duration("timeout", l.timeout),
			zap.String("request_id", ws.RequestID))
		return ExecuteResult{Duration: duration}, ErrTimeout
	}

	if err != nil {
		var launchErr *LaunchError
		if errors.As(err, &launchErr) {
			return ExecuteResult{}, err
		}
		return ExecuteResult{}, &LaunchError{Path: cmd.Argv[0], Err: err}
	}

	// The wrapper reports the guest's pid once it has cloned it. Without
	// that record, whatever failed was the wrapper's own setup.
	if l.wrapper != "" && !guestStarted(out.Status) {
		l.logger.Warn("sandbox setup failed",
			zap.Int("exit_code", out.ExitCode),
			zap.ByteString("stderr", out.Stderr),
			zap.String("request_id", ws.RequestID))
		return ExecuteResult{}, &LaunchError{
			Path: l.wrapper,
			Err:  fmt.Errorf("sandbox setup failed: %s", firstLine(out.Stderr)),
		}
	}

	return ExecuteResult{
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		ExitCode: out.ExitCode,
		Duration: duration,
	}, nil
}

// guestStarted reports whether status holds a child-pid record.
func guestStarted(status []byte) bool {
	dec := json.NewDecoder(bytes.NewReader(status))
	for {
		var record map[string]json.RawMessage
		if err := dec.Decode(&record); err != nil {
			return false
		}
		if _, ok := record["child-pid"]; ok {
			return true
		}
	}
}

func firstLine(b []byte) string {
	line, _, _ := bytes.Cut(bytes.TrimSpace(b), []byte("\n"))
	if len(line) == 0 {
		return "no diagnostics"
	}
	return string(line)
}

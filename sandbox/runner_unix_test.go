//go:build unix

package sandbox

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealProcessRunner(t *testing.T) {
	runner := RealProcessRunner{WaitDelay: 200 * time.Millisecond}

	t.Run("CapturesOutput", func(t *testing.T) {
		out, err := runner.Run(context.Background(), Command{
			Argv: []string{"/bin/sh", "-c", "echo out; echo err >&2"},
			Dir:  t.TempDir(),
		})
		require.NoError(t, err)
		assert.Equal(t, "out\n", string(out.Stdout))
		assert.Equal(t, "err\n", string(out.Stderr))
		assert.Equal(t, 0, out.ExitCode)
	})

	t.Run("ExitCodeIsNotAnError", func(t *testing.T) {
		out, err := runner.Run(context.Background(), Command{
			Argv: []string{"/bin/sh", "-c", "exit 3"},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, out.ExitCode)
	})

	t.Run("WorkingDirectory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(dir+"/main.sh", []byte("echo from-file"), 0o600))

		out, err := runner.Run(context.Background(), Command{
			Argv: []string{"/bin/sh", "main.sh"},
			Dir:  dir,
		})
		require.NoError(t, err)
		assert.Equal(t, "from-file\n", string(out.Stdout))
	})

	t.Run("EnvironmentIsExactlyWhatWasGiven", func(t *testing.T) {
		t.Setenv("CODERUN_SECRET", "hunter2")

		out, err := runner.Run(context.Background(), Command{
			Argv: []string{"/bin/sh", "-c", `echo "[$CODERUN_SECRET][$DENO_DIR][$PATH]"`},
			Env:  []string{"PATH=/usr/bin:/bin", "DENO_DIR=/v8cache"},
		})
		require.NoError(t, err)
		assert.Equal(t, "[][/v8cache][/usr/bin:/bin]\n", string(out.Stdout))
	})

	t.Run("NilEnvironmentInheritsNothing", func(t *testing.T) {
		t.Setenv("CODERUN_SECRET", "hunter2")

		out, err := runner.Run(context.Background(), Command{
			Argv: []string{"/bin/sh", "-c", `echo "[$CODERUN_SECRET]"`},
		})
		require.NoError(t, err)
		assert.Equal(t, "[]\n", string(out.Stdout))
	})

	t.Run("StdinIsEmpty", func(t *testing.T) {
		out, err := runner.Run(context.Background(), Command{
			Argv: []string{"/bin/sh", "-c", "cat; echo done"},
			Env:  []string{"PATH=/usr/bin:/bin"},
		})
		require.NoError(t, err)
		assert.Equal(t, "done\n", string(out.Stdout))
	})

	t.Run("DeadlineKillsProcessGroup", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		// the background sleep keeps the output pipe open unless the whole group dies
		_, err := runner.Run(ctx, Command{
			Argv: []string{"/bin/sh", "-c", "sleep 30 & sleep 30; wait"},
			Env:  []string{"PATH=/usr/bin:/bin"},
		})
		elapsed := time.Since(start)

		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, elapsed, 5*time.Second)
	})

	t.Run("LeftoverChildDoesNotFailTheRun", func(t *testing.T) {
		start := time.Now()
		// the background sleep holds stdout after the shell has exited
		out, err := runner.Run(context.Background(), Command{
			Argv: []string{"/bin/sh", "-c", "sleep 5 & echo hi"},
			Env:  []string{"PATH=/usr/bin:/bin"},
		})
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, "hi\n", string(out.Stdout))
		assert.Equal(t, 0, out.ExitCode)
		assert.Less(t, elapsed, 3*time.Second)
	})

	t.Run("StatusPipe", func(t *testing.T) {
		out, err := runner.Run(context.Background(), Command{
			Argv:   []string{"/bin/sh", "-c", `echo '{ "child-pid": 42 }' >&3; echo out`},
			Status: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "out\n", string(out.Stdout))
		assert.Equal(t, "{ \"child-pid\": 42 }\n", string(out.Status))
	})

	t.Run("NoStatusPipeUnlessRequested", func(t *testing.T) {
		out, err := runner.Run(context.Background(), Command{
			Argv: []string{"/bin/sh", "-c", "echo x >&3"},
		})
		require.NoError(t, err)
		assert.NotEqual(t, 0, out.ExitCode)
		assert.Nil(t, out.Status)
	})

	t.Run("StartFailure", func(t *testing.T) {
		_, err := runner.Run(context.Background(), Command{
			Argv: []string{"/nonexistent/interpreter"},
		})
		var launchErr *LaunchError
		require.ErrorAs(t, err, &launchErr)
		assert.Equal(t, "/nonexistent/interpreter", launchErr.Path)
	})

	t.Run("EmptyCommand", func(t *testing.T) {
		_, err := runner.Run(context.Background(), Command{})
		var launchErr *LaunchError
		require.ErrorAs(t, err, &launchErr)
	})
}

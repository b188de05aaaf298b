package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/coderun/language"
)

func TestRealFileSystem(t *testing.T) {
	fs := RealFileSystem{}
	root := t.TempDir()

	dir, err := fs.MkdirTemp(root, "run_test_")
	require.NoError(t, err)
	assert.Equal(t, root, filepath.Dir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(DirPermission), info.Mode().Perm())

	file := filepath.Join(dir, "main.py")
	require.NoError(t, fs.WriteFile(file, []byte("print(1)"), FilePermission))
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))

	require.NoError(t, fs.RemoveAll(dir))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestErrorTypes(t *testing.T) {
	t.Run("WorkspaceError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := error(&WorkspaceError{Op: "create", Path: "/srv/runs", Err: cause})

		assert.Equal(t, "workspace create /srv/runs: permission denied", err.Error())
		assert.ErrorIs(t, err, cause)

		noPath := &WorkspaceError{Op: "create", Err: cause}
		assert.Equal(t, "workspace create: permission denied", noPath.Error())
	})

	t.Run("LaunchError", func(t *testing.T) {
		err := error(&LaunchError{Path: "bwrap", Err: os.ErrNotExist})

		assert.Equal(t, "launch bwrap: file does not exist", err.Error())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("TimeoutIsDistinct", func(t *testing.T) {
		assert.NotErrorIs(t, ErrTimeout, os.ErrDeadlineExceeded)
		assert.Equal(t, "execution timed out", ErrTimeout.Error())
	})
}

func TestUserMessage(t *testing.T) {
	unsupported := fmt.Errorf("%w: cobol", language.ErrUnsupported)
	launch := &LaunchError{Path: "/usr/bin/bwrap", Err: os.ErrNotExist}

	tests := []struct {
		name    string
		err     error
		expose  bool
		message string
		client  bool
	}{
		{"Unsupported", unsupported, false, "unsupported language: cobol", true},
		{"Timeout", ErrTimeout, false, "execution timed out", true},
		{"WrappedTimeout", fmt.Errorf("run: %w", ErrTimeout), false, "execution timed out", true},
		{"LaunchHidden", launch, false, "internal error", false},
		{"LaunchExposed", launch, true, "launch /usr/bin/bwrap: file does not exist", false},
		{"WorkspaceHidden", &WorkspaceError{Op: "create", Path: "/srv", Err: os.ErrPermission}, false, "internal error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message, client := UserMessage(tt.err, tt.expose)
			assert.Equal(t, tt.message, message)
			assert.Equal(t, tt.client, client)
		})
	}
}

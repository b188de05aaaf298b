package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/coderun/config"
)

func defaultProfileOptions() ProfileOptions {
	return ProfileOptions{
		SystemDirs:         []string{"/usr", "/bin", "/lib"},
		OptionalSystemDirs: []string{"/lib64"},
		CacheDir:           "/v8cache",
		CacheWritable:      true,
		HomeDir:            "/home/sandbox",
	}
}

func TestProfileBuilderArgs(t *testing.T) {
	b := NewProfileBuilder(defaultProfileOptions())

	profile, err := b.Build(&Workspace{Path: "/tmp/run_1"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"--ro-bind", "/usr", "/usr",
		"--ro-bind", "/bin", "/bin",
		"--ro-bind", "/lib", "/lib",
		"--ro-bind-try", "/lib64", "/lib64",
		"--bind", "/v8cache", "/v8cache",
		"--proc", "/proc",
		"--dev", "/dev",
		"--unshare-user",
		"--uid", "0", "--gid", "0",
		"--unshare-ipc",
		"--unshare-pid",
		"--unshare-uts",
		"--unshare-net",
		"--new-session",
		"--die-with-parent",
		"--dir", "/tmp",
		"--dir", "/home/sandbox",
		"--bind", "/tmp/run_1", "/tmp/run_1",
		"--chdir", "/tmp/run_1",
	}, profile.Args())
}

func TestProfileBuilderOptions(t *testing.T) {
	t.Run("ReadOnlyCache", func(t *testing.T) {
		opts := defaultProfileOptions()
		opts.CacheWritable = false
		profile, err := NewProfileBuilder(opts).Build(&Workspace{Path: "/w"})
		require.NoError(t, err)
		assert.Contains(t, profile.Directives(), Directive(ReadOnlyBind{Host: "/v8cache", Guest: "/v8cache"}))
		assert.NotContains(t, profile.Directives(), Directive(WritableBind{Host: "/v8cache", Guest: "/v8cache"}))
	})

	t.Run("NoCache", func(t *testing.T) {
		opts := defaultProfileOptions()
		opts.CacheDir = ""
		profile, err := NewProfileBuilder(opts).Build(&Workspace{Path: "/w"})
		require.NoError(t, err)
		assert.NotContains(t, profile.Args(), "/v8cache")
	})

	t.Run("NetworkEnabled", func(t *testing.T) {
		opts := defaultProfileOptions()
		opts.Network = true
		profile, err := NewProfileBuilder(opts).Build(&Workspace{Path: "/w"})
		require.NoError(t, err)
		assert.NotContains(t, profile.Args(), "--unshare-net")
		assert.Contains(t, profile.Args(), "--unshare-pid")
	})
}

func TestProfileOnlyWorkspaceIsWritable(t *testing.T) {
	profile, err := NewProfileBuilder(defaultProfileOptions()).Build(&Workspace{Path: "/tmp/run_2"})
	require.NoError(t, err)

	var writable []string
	for _, d := range profile.Directives() {
		if bind, ok := d.(WritableBind); ok {
			writable = append(writable, bind.Host)
		}
	}
	assert.Equal(t, []string{"/v8cache", "/tmp/run_2"}, writable)

	last := profile.Directives()[len(profile.Directives())-1]
	assert.Equal(t, Chdir{Path: "/tmp/run_2"}, last)
}

func TestProfileBuilderIndependentProfiles(t *testing.T) {
	b := NewProfileBuilder(defaultProfileOptions())

	p1, err := b.Build(&Workspace{Path: "/tmp/a"})
	require.NoError(t, err)
	p2, err := b.Build(&Workspace{Path: "/tmp/b"})
	require.NoError(t, err)

	assert.Contains(t, p1.Args(), "/tmp/a")
	assert.NotContains(t, p1.Args(), "/tmp/b")
	assert.Contains(t, p2.Args(), "/tmp/b")

	// mutating a returned slice does not leak into the profile
	ds := p1.Directives()
	ds[0] = Chdir{Path: "/"}
	assert.Equal(t, ReadOnlyBind{Host: "/usr", Guest: "/usr"}, p1.Directives()[0])
}

func TestProfileBuilderRejectsBadWorkspace(t *testing.T) {
	b := NewProfileBuilder(defaultProfileOptions())

	for _, ws := range []*Workspace{nil, {Path: ""}, {Path: "relative/dir"}, {Path: "/"}} {
		_, err := b.Build(ws)
		assert.Error(t, err)
	}
}

func TestProfileOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{Sandbox: config.SandboxConfig{
		SystemDirs:         []string{"/usr"},
		OptionalSystemDirs: []string{"/lib64"},
		CacheDir:           "/cache",
		CacheMode:          config.CacheModeRO,
		HomeDir:            "/home/x",
		NetworkEnabled:     true,
	}}

	assert.Equal(t, ProfileOptions{
		SystemDirs:         []string{"/usr"},
		OptionalSystemDirs: []string{"/lib64"},
		CacheDir:           "/cache",
		CacheWritable:      false,
		HomeDir:            "/home/x",
		Network:            true,
	}, ProfileOptionsFromConfig(cfg))
}

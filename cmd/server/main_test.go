package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/coderun/config"
)

func TestAppGraph(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.New()
	require.NoError(t, err)

	for _, transport := range []string{"http", "stdio"} {
		t.Run(transport, func(t *testing.T) {
			c := *cfg
			c.Server.Transport = transport
			require.NoError(t, fx.ValidateApp(appOptions(&c)))
		})
	}
}

func TestConfigCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sandbox:\n  memory_mb: 128\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "--config", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		configPath = ""
	})

	require.NoError(t, rootCmd.Execute())

	var dumped config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &dumped))
	assert.Equal(t, 128, dumped.Sandbox.MemoryMB)
	assert.Equal(t, "bwrap", dumped.Sandbox.Backend)
}

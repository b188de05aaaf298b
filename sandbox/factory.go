package sandbox

import (
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/language"
	"github.com/isdmx/coderun/observability"
)

// NewExecutor creates the executor for the configured backend
func NewExecutor(
	logger *zap.Logger, cfg *config.Config, registry *language.Registry, metrics *observability.Metrics,
) (*Executor, error) {
	var launcherOpts []LauncherOption

	switch cfg.Sandbox.Backend {
	case config.BackendBwrap:
		wrapper := cfg.Sandbox.BwrapPath
		if path, err := exec.LookPath(wrapper); err == nil {
			wrapper = path
		} else {
			// every execution will fail with a launch error until it is installed
			logger.Warn("bubblewrap not found", zap.String("bwrap_path", wrapper), zap.Error(err))
		}
		launcherOpts = append(launcherOpts, WithWrapper(wrapper))
	case config.BackendLocal:
		logger.Warn("local backend runs code without isolation; use for development only")
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}

	if root := cfg.Sandbox.WorkspaceRoot; root != "" {
		if err := os.MkdirAll(root, DirPermission); err != nil {
			return nil, &WorkspaceError{Op: "create root", Path: root, Err: err}
		}
	}

	if cfg.Sandbox.CacheDir != "" {
		if err := os.MkdirAll(cfg.Sandbox.CacheDir, 0o755); err != nil {
			logger.Warn("failed to create cache directory",
				zap.String("cache_dir", cfg.Sandbox.CacheDir), zap.Error(err))
		}
	}

	launcherOpts = append(launcherOpts,
		WithProcessRunner(RealProcessRunner{WaitDelay: cfg.GetWaitDelay()}),
		WithEnvironment(Environment(cfg)),
	)

	workspaces := NewWorkspaceManager(logger, cfg.Sandbox.WorkspaceRoot, WithWorkspaceMetrics(metrics))
	profiles := NewProfileBuilder(ProfileOptionsFromConfig(cfg))
	launcher := NewLauncher(logger, cfg.GetTimeout(), launcherOpts...)

	logger.Info("sandbox executor ready",
		zap.String("backend", cfg.Sandbox.Backend),
		zap.Duration("timeout", cfg.GetTimeout()),
		zap.Bool("network_enabled", cfg.Sandbox.NetworkEnabled),
		zap.Strings("languages", registry.Languages()))

	return NewOrchestrator(logger, registry, workspaces, profiles, launcher, WithMetrics(metrics)), nil
}

// Environment returns the complete environment given to sandboxed processes:
// the search path and, when a cache is configured, its location.
func Environment(cfg *config.Config) []string {
	env := []string{"PATH=" + cfg.Sandbox.Path}
	if cfg.Sandbox.CacheDir != "" && cfg.Sandbox.CacheEnv != "" {
		env = append(env, cfg.Sandbox.CacheEnv+"="+cfg.Sandbox.CacheDir)
	}
	return env
}

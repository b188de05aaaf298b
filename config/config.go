package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `mapstructure:"server" yaml:"server"`
	Sandbox   SandboxConfig       `mapstructure:"sandbox" yaml:"sandbox"`
	Logging   LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Languages map[string]Language `mapstructure:"languages" yaml:"languages"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport     string `mapstructure:"transport" yaml:"transport"`
	HTTPPort      int    `mapstructure:"http_port" yaml:"http_port"`
	MaxRequestKB  int    `mapstructure:"max_request_kb" yaml:"max_request_kb"`
	MaxConcurrent int    `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	MCPEnabled    bool   `mapstructure:"mcp_enabled" yaml:"mcp_enabled"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend            string   `mapstructure:"backend" yaml:"backend"`
	BwrapPath          string   `mapstructure:"bwrap_path" yaml:"bwrap_path"`
	TimeoutSec         int      `mapstructure:"timeout_sec" yaml:"timeout_sec"`
	WaitDelayMS        int      `mapstructure:"wait_delay_ms" yaml:"wait_delay_ms"`
	MemoryMB           int      `mapstructure:"memory_mb" yaml:"memory_mb"`
	WorkspaceRoot      string   `mapstructure:"workspace_root" yaml:"workspace_root"`
	CacheDir           string   `mapstructure:"cache_dir" yaml:"cache_dir"`
	CacheMode          string   `mapstructure:"cache_mode" yaml:"cache_mode"`
	CacheEnv           string   `mapstructure:"cache_env" yaml:"cache_env"`
	HomeDir            string   `mapstructure:"home_dir" yaml:"home_dir"`
	Path               string   `mapstructure:"path" yaml:"path"`
	SystemDirs         []string `mapstructure:"system_dirs" yaml:"system_dirs"`
	OptionalSystemDirs []string `mapstructure:"optional_system_dirs" yaml:"optional_system_dirs"`
	NetworkEnabled     bool     `mapstructure:"network_enabled" yaml:"network_enabled"`
	EnableLocalBackend bool     `mapstructure:"enable_local_backend" yaml:"enable_local_backend"`
	ExposeErrors       bool     `mapstructure:"expose_errors" yaml:"expose_errors"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode" yaml:"mode"`
	Level string `mapstructure:"level" yaml:"level"`
}

// Language is the execution recipe for one language identifier.
type Language struct {
	Interpreter string   `mapstructure:"interpreter" yaml:"interpreter"`
	Args        []string `mapstructure:"args" yaml:"args"`
	Extension   string   `mapstructure:"extension" yaml:"extension"`
}

// Sandbox backends
const (
	BackendBwrap = "bwrap"
	BackendLocal = "local"
)

// Cache mount modes
const (
	CacheModeRW = "rw"
	CacheModeRO = "ro"
)

// EnvPrefix is the prefix for environment variable overrides (CODERUN_SANDBOX_TIMEOUT_SEC, ...).
const EnvPrefix = "CODERUN"

var extensionPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// New loads the configuration from the default search paths.
func New() (*Config, error) {
	return Load("", nil)
}

// Load loads and validates the application configuration.
//
// When path is empty, config.yaml is searched for in "." and "./config"; a
// missing file is not an error. Flags, when given, override file and
// environment values for the keys they are bound to.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	// A file that lists languages replaces the default registry.
	if !v.InConfig("languages") {
		setLanguageDefaults(v)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "http")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.max_request_kb", 512)
	v.SetDefault("server.max_concurrent", 32)
	v.SetDefault("server.mcp_enabled", true)

	v.SetDefault("sandbox.backend", BackendBwrap)
	v.SetDefault("sandbox.bwrap_path", "bwrap")
	v.SetDefault("sandbox.timeout_sec", 5)
	v.SetDefault("sandbox.wait_delay_ms", 500)
	v.SetDefault("sandbox.memory_mb", 64)
	v.SetDefault("sandbox.workspace_root", "")
	v.SetDefault("sandbox.cache_dir", "/v8cache")
	v.SetDefault("sandbox.cache_mode", CacheModeRW)
	v.SetDefault("sandbox.cache_env", "DENO_DIR")
	v.SetDefault("sandbox.home_dir", "/home/sandbox")
	v.SetDefault("sandbox.path", "/usr/local/bin:/usr/bin:/bin")
	v.SetDefault("sandbox.system_dirs", []string{"/usr", "/bin", "/lib"})
	v.SetDefault("sandbox.optional_system_dirs", []string{"/lib64"})
	v.SetDefault("sandbox.network_enabled", false)
	v.SetDefault("sandbox.enable_local_backend", false)
	v.SetDefault("sandbox.expose_errors", false)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

func setLanguageDefaults(v *viper.Viper) {
	// -S skips site-packages
	v.SetDefault("languages.python.interpreter", "python3")
	v.SetDefault("languages.python.args", []string{"-S"})
	v.SetDefault("languages.python.extension", "py")

	v.SetDefault("languages.node.interpreter", "node")
	v.SetDefault("languages.node.args", []string{"--max-old-space-size=${MEMORY_MB}"})
	v.SetDefault("languages.node.extension", "js")

	v.SetDefault("languages.deno.interpreter", "deno")
	v.SetDefault("languages.deno.args", []string{"run", "--allow-read", "--v8-flags=--max-old-space-size=${MEMORY_MB}"})
	v.SetDefault("languages.deno.extension", "ts")

	v.SetDefault("languages.typescript.interpreter", "deno")
	v.SetDefault("languages.typescript.args", []string{"run", "--allow-read"})
	v.SetDefault("languages.typescript.extension", "ts")

	v.SetDefault("languages.bash.interpreter", "/bin/bash")
	v.SetDefault("languages.bash.args", []string{"--noprofile", "--norc"})
	v.SetDefault("languages.bash.extension", "sh")

	// sqlite3 reads the script from stdin, which is otherwise closed
	v.SetDefault("languages.sql.interpreter", "/bin/bash")
	v.SetDefault("languages.sql.args", []string{"-c", `sqlite3 :memory: < "$1"`, "bash"})
	v.SetDefault("languages.sql.extension", "sql")
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"transport":   "server.transport",
	"port":        "server.http_port",
	"backend":     "sandbox.backend",
	"timeout-sec": "sandbox.timeout_sec",
	"log-level":   "logging.level",
	"log-mode":    "logging.mode",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		// Unchanged flags would shadow file and env values with their defaults.
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// validate ensures the configuration is valid
//
//nolint:gocyclo // Flat list of independent checks
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Server.MaxRequestKB <= 0 {
		return fmt.Errorf("server.max_request_kb must be positive, got: %d", c.Server.MaxRequestKB)
	}

	if c.Server.MaxConcurrent < 0 {
		return fmt.Errorf("server.max_concurrent must not be negative, got: %d", c.Server.MaxConcurrent)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.WaitDelayMS < 0 {
		return fmt.Errorf("sandbox.wait_delay_ms must not be negative, got: %d", c.Sandbox.WaitDelayMS)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	supportedBackends := map[string]bool{
		BackendBwrap: true,
		BackendLocal: c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}
	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.Backend == BackendBwrap && c.Sandbox.BwrapPath == "" {
		return fmt.Errorf("sandbox.bwrap_path is required for the bwrap backend")
	}

	if c.Sandbox.CacheDir != "" && c.Sandbox.CacheMode != CacheModeRW && c.Sandbox.CacheMode != CacheModeRO {
		return fmt.Errorf("invalid sandbox.cache_mode: %s, must be 'rw' or 'ro'", c.Sandbox.CacheMode)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	if len(c.Languages) == 0 {
		return fmt.Errorf("at least one language must be configured")
	}

	for id, lang := range c.Languages {
		if lang.Interpreter == "" {
			return fmt.Errorf("languages.%s.interpreter is required", id)
		}
		if !extensionPattern.MatchString(lang.Extension) {
			return fmt.Errorf("invalid languages.%s.extension: %q, must be alphanumeric", id, lang.Extension)
		}
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetWaitDelay returns how long to wait for output pipes after the process is killed
func (c *Config) GetWaitDelay() time.Duration {
	return time.Duration(c.Sandbox.WaitDelayMS) * time.Millisecond
}

// MaxRequestBytes returns the request body limit in bytes
func (c *Config) MaxRequestBytes() int64 {
	return int64(c.Server.MaxRequestKB) * 1024
}

// Dump renders the effective configuration as YAML
func (c *Config) Dump() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return out, nil
}

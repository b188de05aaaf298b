// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files, CODERUN_* environment variables and CLI
// flags. It covers server settings, the sandbox isolation parameters and the
// per-language execution recipes.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox backend: %s\n", cfg.Sandbox.Backend)
package config

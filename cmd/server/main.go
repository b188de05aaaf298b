package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/isdmx/coderun/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "coderun",
	Short: "Coderun - sandboxed code execution service",
	Long: `Coderun runs short, untrusted programs under bubblewrap and returns their output.

Each request gets a private workspace, a minimal environment, no network and
a hard deadline. The service speaks plain HTTP and the Model Context Protocol.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-mode", "production", "Log mode (production, development)")
}

// loadConfig reads the configuration, applying flags the user set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

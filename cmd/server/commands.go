package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/coderun/language"
	"github.com/isdmx/coderun/logger"
	"github.com/isdmx/coderun/observability"
	"github.com/isdmx/coderun/sandbox"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether this host can run sandboxes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		caps := sandbox.DetectCapabilities(cfg.Sandbox.BwrapPath)
		out, err := yaml.Marshal(caps)
		if err != nil {
			return fmt.Errorf("encoding capabilities: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))

		if reason := caps.SkipReason(); reason != "" {
			return errors.New(reason)
		}
		return nil
	},
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the configured languages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg, err := language.NewFromConfig(cfg)
		if err != nil {
			return err
		}

		for _, id := range reg.Languages() {
			recipe, _ := reg.Lookup(id)
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", id, strings.Join(recipe.Command(recipe.Filename()), " "))
		}
		return nil
	},
}

var execLang string

var execCmd = &cobra.Command{
	Use:   "exec --lang <id> <file>",
	Short: "Run one source file through the configured sandbox",
	Long: `Run one source file through the configured sandbox and print its output.

Standard output and standard error of the program are copied to this
process's own. The exit code of the program becomes the exit code of exec.

The local backend runs the file without isolation and is refused unless
sandbox.enable_local_backend is set.

Examples:
  coderun exec --lang python hello.py
  CODERUN_SANDBOX_ENABLE_LOCAL_BACKEND=true coderun exec --lang bash --backend local script.sh`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		code, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading source: %w", err)
		}

		log, err := logger.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		reg, err := language.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		executor, err := sandbox.NewExecutor(log, cfg, reg, observability.NewMetrics())
		if err != nil {
			return err
		}

		result, err := executor.Execute(cmd.Context(), sandbox.ExecuteRequest{Language: execLang, Code: string(code)})
		if err != nil {
			log.Debug("exec failed", zap.Error(err))
			return err
		}

		_, _ = cmd.OutOrStdout().Write(result.Stdout)
		_, _ = cmd.ErrOrStderr().Write(result.Stderr)
		if result.ExitCode != 0 {
			// os.Exit skips deferred calls
			_ = log.Sync()
			os.Exit(result.ExitCode)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := cfg.Dump()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	execCmd.Flags().StringVar(&execLang, "lang", "", "Language identifier")
	_ = execCmd.MarkFlagRequired("lang")
	execCmd.Flags().String("backend", "", "Sandbox backend (bwrap, local)")
	execCmd.Flags().Int("timeout-sec", 5, "Execution deadline in seconds")

	rootCmd.AddCommand(checkCmd, languagesCmd, execCmd, configCmd)
}

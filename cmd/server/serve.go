package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/httpserver"
	"github.com/isdmx/coderun/language"
	"github.com/isdmx/coderun/logger"
	"github.com/isdmx/coderun/mcpserver"
	"github.com/isdmx/coderun/observability"
	"github.com/isdmx/coderun/sandbox"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the execution service",
	Long: `Start the execution service on the configured transport.

With the http transport the run endpoint is served at / and /run, and the MCP
endpoint at /mcp. With the stdio transport the process speaks MCP on
stdin/stdout and logs to stderr.

Examples:
  coderun serve
  coderun serve --port 9090 --timeout-sec 10
  coderun serve --transport stdio`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("transport", "http", "Transport (http, stdio)")
	serveCmd.Flags().Int("port", 8080, "HTTP port")
	serveCmd.Flags().String("backend", config.BackendBwrap, "Sandbox backend (bwrap, local)")
	serveCmd.Flags().Int("timeout-sec", 5, "Execution deadline in seconds")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	app := fx.New(appOptions(cfg))
	app.Run()
	return app.Err()
}

// appOptions wires the service graph for cfg.
func appOptions(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),

		fx.Provide(
			logger.NewFromConfig,
			language.NewFromConfig,
			observability.NewMetrics,
			sandbox.NewExecutor,
			func(e *sandbox.Executor) mcpserver.Executor { return e },
			func(e *sandbox.Executor) httpserver.Executor { return e },
			mcpserver.New,
			newHTTPServer,
		),

		fx.Invoke(registerTransport),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
}

func newHTTPServer(
	cfg *config.Config,
	log *zap.Logger,
	executor httpserver.Executor,
	metrics *observability.Metrics,
	mcp *mcpserver.MCPServer,
) *httpserver.Server {
	var opts []httpserver.Option
	if cfg.Server.MCPEnabled {
		opts = append(opts, httpserver.WithMCPHandler(mcp.HTTPHandler()))
	}
	return httpserver.New(cfg, log, executor, metrics, opts...)
}

func registerTransport(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	log *zap.Logger,
	httpServer *httpserver.Server,
	mcp *mcpserver.MCPServer,
) {
	switch cfg.Server.Transport {
	case "stdio":
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := mcp.ServeStdio(); err != nil {
						log.Error("stdio transport stopped", zap.Error(err))
					}
					// stdin closed: the client is gone
					_ = shutdowner.Shutdown()
				}()
				return nil
			},
		})
	default:
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				return httpServer.Start()
			},
			OnStop: httpServer.Shutdown,
		})
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
}

// Package logger provides structured logging capabilities.
//
// The logger package builds the zap logger shared by the HTTP server, the
// MCP server and the sandbox. Logs always go to stderr so that stdout stays
// free for the MCP stdio transport.
//
// Usage:
//
//	logger, err := logger.New("production", "info")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger.Info("Application started")
//	logger.Error("An error occurred", zap.Error(err))
package logger

// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the sandbox as the execute_sandboxed_code
// tool using the mark3labs/mcp-go library. The tool drives the same executor
// as the HTTP endpoint and reports errors with the same message policy.
//
// The server runs on stdio, or is mounted by the HTTP server at /mcp.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, executor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or mount server.HTTPHandler()
package mcpserver

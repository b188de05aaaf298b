package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/sandbox"
)

// ToolName is the name of the code execution tool.
const ToolName = "execute_sandboxed_code"

// Executor is what the MCP server needs from the sandbox.
type Executor interface {
	sandbox.SandboxExecutor
	Languages() []string
}

// MCPServer represents the MCP server
type MCPServer struct {
	config      *config.Config
	logger      *zap.Logger
	sandboxExec Executor
	mcpServer   *server.MCPServer
}

// toolResult is the JSON text returned by a successful tool call.
type toolResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, sandboxExec Executor) (*MCPServer, error) {
	s := &MCPServer{
		config:      cfg,
		logger:      logger,
		sandboxExec: sandboxExec,
	}

	s.mcpServer = server.NewMCPServer("coderun", "1.0.0", server.WithToolCapabilities(false))

	s.registerExecuteSandboxedCodeTool()

	return s, nil
}

func (s *MCPServer) registerExecuteSandboxedCodeTool() {
	tool := mcp.Tool{
		Name:        ToolName,
		Description: "Run a single source file in an isolated sandbox and return its output",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Complete source code of the program",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Language identifier",
					"enum":        s.sandboxExec.Languages(),
				},
			},
			Required: []string{"code", "language"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleExecuteSandboxedCode)
}

func (s *MCPServer) handleExecuteSandboxedCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return errorResult(fmt.Sprintf("code parameter is required: %v", err)), nil
	}

	language, err := request.RequireString("language")
	if err != nil {
		return errorResult(fmt.Sprintf("language parameter is required: %v", err)), nil
	}

	if !slices.Contains(s.sandboxExec.Languages(), language) {
		return errorResult(fmt.Sprintf("unsupported language: %s, must be one of: %s",
			language, strings.Join(s.sandboxExec.Languages(), ", "))), nil
	}

	s.logger.Info("code execution requested over MCP", zap.String("language", language))

	result, err := s.sandboxExec.Execute(ctx, sandbox.ExecuteRequest{
		Language: language,
		Code:     code,
	})
	if err != nil {
		msg, _ := sandbox.UserMessage(err, s.config.Sandbox.ExposeErrors)
		s.logger.Info("MCP execution failed", zap.String("language", language), zap.Error(err))
		return errorResult(msg), nil
	}

	out, err := json.Marshal(toolResult{
		Stdout:   string(result.Stdout),
		Stderr:   strings.TrimRightFunc(string(result.Stderr), unicode.IsSpace),
		ExitCode: result.ExitCode,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(out),
			},
		},
	}, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: msg,
			},
		},
		IsError: true,
	}
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler returns the streamable HTTP transport, mounted by the HTTP server at /mcp
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

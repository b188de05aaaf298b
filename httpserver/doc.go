// Package httpserver exposes the sandbox over HTTP.
//
// POST / (or /run) takes {"lang": ..., "code": ...} and answers with
// {"stdout", "stderr", "exit_code"} or {"error"}. The router also serves
// /languages, /healthz, /metrics and, when enabled, the MCP endpoint.
package httpserver

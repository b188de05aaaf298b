// Package observability provides Prometheus metrics and HTTP middleware for
// the code execution service.
package observability

// Package main is the entry point for the Coderun execution service.
//
// Coderun accepts a language identifier and a source file, runs it under
// bubblewrap with a private workspace and a hard deadline, and returns what
// the program printed. The serve command exposes this over HTTP and MCP;
// check, languages, exec and config are operator tools.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, cobra for the command line, zap for structured logging and viper
// for configuration.
package main

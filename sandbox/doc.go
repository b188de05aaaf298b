// Package sandbox runs untrusted source code under bubblewrap.
//
// An Executor is safe for concurrent use. For each request it creates a
// private workspace and writes the source there as main.<ext>. It then
// builds an isolation Profile that binds only the system directories, the
// optional cache and that workspace, and launches the interpreter through
// the wrapper with a minimal environment and a hard deadline. The
// workspace is removed on every path out of Execute.
//
// The local backend skips the wrapper and exists for development on hosts
// without user namespaces.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg, registry, metrics)
//	result, err := executor.Execute(ctx, sandbox.ExecuteRequest{
//	    Language: "python",
//	    Code:     "print('Hello, World!')",
//	})
package sandbox

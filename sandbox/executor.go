package sandbox

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/isdmx/coderun/language"
	"github.com/isdmx/coderun/observability"
)

// Executor runs one request end to end: it resolves the language, prepares a
// workspace, isolates and launches the interpreter, and always removes the
// workspace before returning.
type Executor struct {
	logger     *zap.Logger
	registry   *language.Registry
	workspaces *WorkspaceManager
	profiles   *ProfileBuilder
	launcher   *Launcher
	metrics    *observability.Metrics
}

// ExecutorOption defines a functional option for Executor
type ExecutorOption func(*Executor)

// WithMetrics sets the metrics the executor reports to
func WithMetrics(metrics *observability.Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = metrics
	}
}

// NewOrchestrator wires an Executor from its parts.
func NewOrchestrator(
	logger *zap.Logger,
	registry *language.Registry,
	workspaces *WorkspaceManager,
	profiles *ProfileBuilder,
	launcher *Launcher,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		logger:     logger,
		registry:   registry,
		workspaces: workspaces,
		profiles:   profiles,
		launcher:   launcher,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs req.Code with the recipe registered for req.Language.
//
// A guest that exits non-zero is a successful execution. Errors are one of
// language.ErrUnsupported, ErrTimeout, *WorkspaceError or *LaunchError.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	recipe, err := e.registry.Lookup(req.Language)
	if err != nil {
		// unknown identifiers are not used as label values
		e.metrics.ObserveExecution("unknown", observability.OutcomeUnsupported, 0)
		e.logger.Info("unsupported language requested", zap.String("language", req.Language))
		return ExecuteResult{}, err
	}

	ws, err := e.workspaces.Create()
	if err != nil {
		e.fail(req.Language, "", err)
		return ExecuteResult{}, err
	}
	defer e.workspaces.Destroy(ws)

	filename := recipe.Filename()
	if err := e.workspaces.WriteSource(ws, filename, []byte(req.Code)); err != nil {
		e.fail(req.Language, ws.RequestID, err)
		return ExecuteResult{}, err
	}

	profile, err := e.profiles.Build(ws)
	if err != nil {
		err = &WorkspaceError{Op: "isolate", Path: ws.Path, Err: err}
		e.fail(req.Language, ws.RequestID, err)
		return ExecuteResult{}, err
	}

	e.logger.Info("executing code",
		zap.String("language", req.Language),
		zap.String("request_id", ws.RequestID),
		zap.Int("code_bytes", len(req.Code)))

	result, err := e.launcher.Launch(ctx, profile, recipe, ws, filename)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			e.metrics.ObserveExecution(req.Language, observability.OutcomeTimeout, result.Duration)
			e.logger.Info("execution timed out",
				zap.String("language", req.Language),
				zap.String("request_id", ws.RequestID),
				zap.Duration("duration", result.Duration))
			return ExecuteResult{}, err
		}
		e.fail(req.Language, ws.RequestID, err)
		return ExecuteResult{}, err
	}

	e.metrics.ObserveExecution(req.Language, observability.OutcomeCompleted, result.Duration)
	e.logger.Info("execution finished",
		zap.String("language", req.Language),
		zap.String("request_id", ws.RequestID),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.Int("stdout_len", len(result.Stdout)),
		zap.Int("stderr_len", len(result.Stderr)))

	return result, nil
}

// Languages returns the identifiers Execute accepts.
func (e *Executor) Languages() []string {
	return e.registry.Languages()
}

func (e *Executor) fail(lang, requestID string, err error) {
	outcome := observability.OutcomeInternal
	var wsErr *WorkspaceError
	var launchErr *LaunchError
	switch {
	case errors.As(err, &wsErr):
		outcome = observability.OutcomeWorkspace
	case errors.As(err, &launchErr):
		outcome = observability.OutcomeLaunchError
	}

	e.metrics.ObserveExecution(lang, outcome, 0)
	e.logger.Error("execution failed",
		zap.String("language", lang),
		zap.String("request_id", requestID),
		zap.String("outcome", outcome),
		zap.Error(err))
}

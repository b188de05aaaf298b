package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/isdmx/coderun/sandbox"
)

// RunRequest is the payload of the run endpoint. Pointers distinguish a
// missing field from an empty one.
type RunRequest struct {
	Lang *string `json:"lang"`
	Code *string `json:"code"`
}

// RunResponse is returned for every execution that reached the guest,
// whatever its exit code.
type RunResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if limit := int64(s.cfg.Server.MaxConcurrent); limit > 0 {
		if s.inflight.Add(1) > limit {
			s.inflight.Add(-1)
			writeError(w, http.StatusTooManyRequests, "at capacity")
			return
		}
		defer s.inflight.Add(-1)
	}

	var req RunRequest
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestBytes())
	defer body.Close()
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Lang == nil || *req.Lang == "" {
		writeError(w, http.StatusBadRequest, "missing field: lang")
		return
	}
	if req.Code == nil {
		writeError(w, http.StatusBadRequest, "missing field: code")
		return
	}

	result, err := s.executor.Execute(r.Context(), sandbox.ExecuteRequest{
		Language: *req.Lang,
		Code:     *req.Code,
	})
	if err != nil {
		msg, clientErr := sandbox.UserMessage(err, s.cfg.Sandbox.ExposeErrors)
		status := http.StatusInternalServerError
		if clientErr {
			status = http.StatusBadRequest
		}
		s.logger.Info("run request failed",
			zap.String("http_request_id", middleware.GetReqID(r.Context())),
			zap.String("language", *req.Lang),
			zap.Int("status", status),
			zap.Error(err))
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{
		Stdout:   string(result.Stdout),
		Stderr:   strings.TrimRightFunc(string(result.Stderr), unicode.IsSpace),
		ExitCode: result.ExitCode,
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"languages": s.executor.Languages()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"assay/internal/events"
	"assay/internal/formatting"
	"assay/internal/runner"
	"assay/internal/storage"
	"assay/internal/suite"
	"assay/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxBodyBytes limits request bodies carrying suite documents.
const maxBodyBytes = 4 << 20

// CreateRunRequest starts a run through the REST API.
type CreateRunRequest struct {
	// Suite is a suite object, or a string holding a YAML or JSON document
	Suite json.RawMessage `json:"suite"`
	// BaseURL overrides the suite's baseUrl
	BaseURL string `json:"baseUrl,omitempty"`
	// Async returns 202 immediately instead of waiting for the result
	Async bool `json:"async,omitempty"`
}

// RunAccepted is returned for async runs and for runs still in progress.
type RunAccepted struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// RunEvents is the recorded event log of a run.
type RunEvents struct {
	RunID    string         `json:"runId"`
	Finished bool           `json:"finished"`
	Events   []events.Event `json:"events"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error(subsystem, err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// decodeSuite accepts a suite object or a string containing a document.
func decodeSuite(raw json.RawMessage) (*suite.TestSuite, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, errors.New("suite is required")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var doc string
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("invalid suite document: %w", err)
		}
		return suite.Parse([]byte(doc))
	}
	return suite.Parse(raw)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"activeRuns":  s.runs.activeCount(),
		"connections": s.conns.count(),
	})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	ts, err := decodeSuite(req.Suite)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	s.prepareSuite(ts, req.BaseURL)

	run := &trackedRun{
		id:       uuid.NewString(),
		recorder: events.NewRecorder(),
		done:     make(chan struct{}),
	}
	run.orch = s.newOrchestrator(run.id)
	s.runs.add(run)

	if req.Async {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.execute(s.runCtx, run, ts)
		}()
		writeJSON(w, http.StatusAccepted, RunAccepted{RunID: run.id, Status: "running"})
		return
	}

	result := s.execute(r.Context(), run, ts)
	if result == nil {
		writeError(w, http.StatusInternalServerError, "run %s produced no result", run.id)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// execute runs ts on the tracked run's orchestrator and saves the result.
func (s *Server) execute(ctx context.Context, run *trackedRun, ts *suite.TestSuite) *runner.RunResult {
	reporter := events.Multi(run.recorder, events.LogReporter{Subsystem: subsystem})
	result, err := run.orch.Run(ctx, ts, reporter)
	if err != nil {
		logging.Error(subsystem, err, "Run %s did not start", run.id)
	}
	s.saveResult(result)
	run.finish(result)
	s.runs.markFinished(run.id)
	return result
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		SuiteName: q.Get("suite"),
		Status:    runner.Status(q.Get("status")),
	}
	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit: %v", err)
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset: %v", err)
		return
	}

	list, err := s.store.List(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if run, ok := s.runs.get(id); ok && !run.finished() {
		writeJSON(w, http.StatusAccepted, RunAccepted{RunID: id, Status: "running"})
		return
	}

	result, err := s.store.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run %s not found", id)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load run %s: %v", id, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if run, ok := s.runs.get(id); ok && !run.finished() {
		writeError(w, http.StatusConflict, "run %s is still in progress", id)
		return
	}

	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run %s not found", id)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete run %s: %v", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, ok := s.runs.get(id)
	if !ok || run.finished() {
		writeError(w, http.StatusNotFound, "no active run %s", id)
		return
	}
	run.orch.Stop()
	logging.Info(subsystem, "Stop requested for run %s", id)
	writeJSON(w, http.StatusAccepted, RunAccepted{RunID: id, Status: "stopping"})
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, ok := s.runs.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "no event log for run %s", id)
		return
	}
	writeJSON(w, http.StatusOK, RunEvents{
		RunID:    id,
		Finished: run.finished(),
		Events:   run.recorder.Events(),
	})
}

func (s *Server) handleValidateSuite(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body: %v", err)
		return
	}

	ts, err := suite.Parse(data)
	if err != nil {
		writeJSON(w, http.StatusOK, formatting.NewSuiteReport("", nil, err))
		return
	}
	writeJSON(w, http.StatusOK, formatting.NewSuiteReport("", ts, s.registry.Validate(ts)))
}

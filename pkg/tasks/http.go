package tasks

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/nodetasks/pkg/logger"
)

// Internal endpoint paths
const (
	RunPath      = "/internal/tasks/run"
	TriggerPath  = "/internal/tasks/trigger"
	MutationPath = "/internal/mutations"
)

// MutationRequest is the lifecycle signal posted by an out-of-process CRUD layer
type MutationRequest struct {
	Event  Event `json:"event"`
	Before Node  `json:"before,omitempty"`
	After  Node  `json:"after,omitempty"`
	Diff   Diff  `json:"diff,omitempty"`
}

// MutationResponse lists the tasks persisted for a post-commit event
type MutationResponse struct {
	Tasks []*Task `json:"tasks"`
}

// NewHTTPHandler exposes the runner on the internal self-invocation endpoints.
//
//	POST /internal/tasks/run      runs one cycle and answers the Report
//	POST /internal/tasks/trigger  signals the invoker and answers 202
func NewHTTPHandler(runner *Runner, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	RegisterRunnerRoutes(r, runner, log)
	return r
}

// RegisterRunnerRoutes adds the runner endpoints to an existing router
func RegisterRunnerRoutes(r chi.Router, runner *Runner, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("task_endpoint"))

	r.Post(RunPath, func(w http.ResponseWriter, req *http.Request) {
		report, err := runner.Run(req.Context())
		switch {
		case errors.Is(err, ErrRunnerBusy):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case err != nil:
			log.ErrorContext(req.Context(), "runner invocation failed", logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusOK, report)
		}
	})

	r.Post(TriggerPath, func(w http.ResponseWriter, req *http.Request) {
		runner.Invoker().Invoke(req.Context())
		w.WriteHeader(http.StatusAccepted)
	})
}

// NewMutationHandler accepts lifecycle signals over HTTP.
//
//	POST /internal/mutations  dispatches a MutationRequest
//
// Pre-commit events answer 422 when the dispatcher aborts the write.
func NewMutationHandler(d *Dispatcher, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	RegisterMutationRoutes(r, d, log)
	return r
}

// RegisterMutationRoutes adds the mutation endpoint to an existing router
func RegisterMutationRoutes(r chi.Router, d *Dispatcher, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(logger.Component("mutation_endpoint"))

	r.Post(MutationPath, func(w http.ResponseWriter, req *http.Request) {
		var in MutationRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid mutation payload"})
			return
		}

		created, err := d.Dispatch(req.Context(), in.Event, in.Before, in.After, in.Diff)
		switch {
		case errors.Is(err, ErrInvalidEvent):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case err != nil && in.Event.PreCommit():
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		case err != nil:
			log.ErrorContext(req.Context(), "mutation dispatch failed",
				logger.Event(string(in.Event)),
				logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		default:
			if created == nil {
				created = []*Task{}
			}
			writeJSON(w, http.StatusOK, MutationResponse{Tasks: created})
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

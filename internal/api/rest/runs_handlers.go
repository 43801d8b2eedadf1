package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fortuna/pickem/internal/runs"
	"github.com/fortuna/pickem/internal/task"
)

// RunsHandler exposes the run queue
type RunsHandler struct {
	runs RunService
}

// NewRunsHandler wires the REST layer to the run manager
func NewRunsHandler(runs RunService) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// HandleSubmit handles POST /api/v1/runs
func (h *RunsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req task.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	run, err := h.runs.Submit(req)
	if errors.Is(err, runs.ErrQueueFull) {
		respondError(w, http.StatusServiceUnavailable, "Run queue is full", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid run request", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{"run": run})
}

// HandleGet handles GET /api/v1/runs/{runID}
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, ok := h.runs.Get(mux.Vars(r)["runID"])
	if !ok {
		respondError(w, http.StatusNotFound, "Run not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"run": run})
}

// HandleList handles GET /api/v1/runs
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list := h.runs.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  list,
		"count": len(list),
		"tasks": task.Names,
	})
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/samephoto/internal/constants"
	"github.com/kozaktomas/samephoto/internal/database"
	"github.com/kozaktomas/samephoto/internal/logging"
)

const errRunsDisabled = "run history is not configured"

// RunsHandler serves the stored scan history
type RunsHandler struct {
	store  database.RunWriter
	logger *slog.Logger
}

// NewRunsHandler creates a new runs handler. A nil store makes every endpoint
// answer 503.
func NewRunsHandler(store database.RunWriter, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &RunsHandler{store: store, logger: logger}
}

// RunResponse is a stored run with its groups
type RunResponse struct {
	Run    *database.StoredRun    `json:"run"`
	Groups []database.StoredGroup `json:"groups"`
}

func (h *RunsHandler) available(w http.ResponseWriter) bool {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, errRunsDisabled)
		return false
	}
	return true
}

// List returns the most recent runs
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	limit := constants.DefaultRunListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, constants.MaxRunListLimit)
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []database.StoredRun{}
	}
	respondJSON(w, http.StatusOK, runs)
}

// Get returns one run and its groups
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	id := chi.URLParam(r, "id")
	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get run", "id", sanitizeForLog(id), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	groups, err := h.store.GetGroups(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get groups", "id", sanitizeForLog(id), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get groups")
		return
	}
	if groups == nil {
		groups = []database.StoredGroup{}
	}

	respondJSON(w, http.StatusOK, RunResponse{Run: run, Groups: groups})
}

// Delete removes a run
func (h *RunsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	id := chi.URLParam(r, "id")
	err := h.store.DeleteRun(r.Context(), id)
	if errors.Is(err, database.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete run", "id", sanitizeForLog(id), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete run")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

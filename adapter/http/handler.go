package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shiftsat/engine/internal/scheduling/application"
	"github.com/shiftsat/engine/internal/scheduling/application/commands"
	"github.com/shiftsat/engine/internal/scheduling/domain"
	"github.com/shiftsat/engine/internal/shared/infrastructure/database"
)

// ScheduleHandler adapts the SolveSchedule use case to HTTP.
type ScheduleHandler struct {
	solver *commands.SolveScheduleHandler
	repo   commands.RunRepository
	logger *slog.Logger
}

// NewScheduleHandler creates a handler. repo may be nil, in which case the
// history endpoint always returns 404.
func NewScheduleHandler(solver *commands.SolveScheduleHandler, repo commands.RunRepository, logger *slog.Logger) *ScheduleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleHandler{solver: solver, repo: repo, logger: logger}
}

// Solve handles POST /v1/schedule. The request body is the schedule_input +
// cleaning_tasks_input envelope; the response is the schedule_result +
// applied_constraints_history envelope, per section 6.
func (h *ScheduleHandler) Solve(w http.ResponseWriter, r *http.Request) {
	var req application.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body: "+err.Error())
		return
	}

	// An invalid time_limit_sec query value falls back to the settings
	// default rather than failing the request.
	timeLimitSec := 0
	if raw := r.URL.Query().Get("time_limit_sec"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			timeLimitSec = v
		} else {
			h.logger.Warn("ignoring invalid time_limit_sec query parameter", "value", raw)
		}
	}

	cmd := commands.SolveScheduleCommand{Request: req, TimeLimitSec: timeLimitSec}

	result, err := h.solver.Handle(r.Context(), cmd)
	if err != nil {
		if errors.Is(err, domain.ErrInputShape) || errors.Is(err, domain.ErrNoFacilities) || errors.Is(err, domain.ErrNoEmployees) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("solve schedule failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, application.FromResult(result))
}

// History handles GET /v1/schedule/{run_id}/history.
func (h *ScheduleHandler) History(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run_id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}
	if h.repo == nil {
		writeError(w, http.StatusNotFound, "run history is not available")
		return
	}

	history, err := h.repo.History(r.Context(), runID)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("fetch run history failed", "error", err, "run_id", runID)
		writeError(w, http.StatusInternalServerError, "failed to load run history")
		return
	}

	attempts := make([]application.AttemptDTO, 0, len(history))
	for _, a := range history {
		attempts = append(attempts, application.ToAttemptDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "applied_constraints_history": attempts})
}

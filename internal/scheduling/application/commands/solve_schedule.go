// Package commands holds the in-process entry points the HTTP boundary and
// the CLI both call into, per SPEC_FULL.md section 4.
package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shiftsat/engine/internal/scheduling/application"
	"github.com/shiftsat/engine/internal/scheduling/application/services"
	"github.com/shiftsat/engine/internal/scheduling/domain"
	sharedApp "github.com/shiftsat/engine/internal/shared/application"
	sharedDomain "github.com/shiftsat/engine/internal/shared/domain"
)

// ResultCache memoizes a ScheduleResult by the hash of its input payload so
// idempotent re-POSTs of the same request skip re-solving.
type ResultCache interface {
	Get(ctx context.Context, key string) (*domain.ScheduleResult, bool, error)
	Set(ctx context.Context, key string, result *domain.ScheduleResult) error
}

// RunRepository persists one solve's append-only attempt history so it can
// be retrieved later by run ID (the HTTP history endpoint).
type RunRepository interface {
	SaveRun(ctx context.Context, runID string, result *domain.ScheduleResult) error
	History(ctx context.Context, runID string) ([]domain.Attempt, error)
}

// EventPublisher publishes domain events produced by a solve run.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
}

// DifficultyScorerPlugin overrides the built-in DifficultyScorer with an
// out-of-process implementation (see infrastructure/scoring).
type DifficultyScorerPlugin interface {
	Score(dayOfWeek string, hour int) (float64, error)
}

// pluginScoreSource adapts a DifficultyScorerPlugin (which can fail, since
// it crosses a process boundary) to services.DifficultyScoreSource (which
// cannot). A failed plugin call falls back to 0 and logs a warning rather
// than aborting the solve.
type pluginScoreSource struct {
	plugin DifficultyScorerPlugin
	logger *slog.Logger
}

func (p *pluginScoreSource) Score(dayOfWeek string, hour int) float64 {
	v, err := p.plugin.Score(dayOfWeek, hour)
	if err != nil {
		p.logger.Warn("difficulty scoring plugin call failed, using zero", "error", err, "day", dayOfWeek, "hour", hour)
		return 0
	}
	return v
}

// SolveScheduleCommand is the input to the SolveSchedule use case. It
// implements sharedApp.Command so it can flow through the same
// command-handler shape the rest of the codebase uses.
type SolveScheduleCommand struct {
	Request      application.ScheduleRequest
	TimeLimitSec int // overrides Settings.TimeLimitSec when > 0 (HTTP query param)
	UserID       uuid.UUID
}

// CommandName identifies this command for logging/dispatch.
func (SolveScheduleCommand) CommandName() string { return "scheduling.solve_schedule" }

var _ sharedApp.Command = SolveScheduleCommand{}

// SolveScheduleHandler wires the scheduling services together: availability
// expansion, model build, the BUILD/SOLVE retry loop, and result extraction.
// Cache, repository, and event publisher are optional collaborators; a nil
// dependency simply skips that side-effect.
type SolveScheduleHandler struct {
	Cache     ResultCache
	Repo      RunRepository
	Publisher EventPublisher
	Scorer    DifficultyScorerPlugin
	Logger    *slog.Logger
}

// NewSolveScheduleHandler creates a handler. All dependencies are
// optional; pass nil for each to run purely in-process. A nil logger falls
// back to slog.Default.
func NewSolveScheduleHandler(cache ResultCache, repo RunRepository, publisher EventPublisher, scorer DifficultyScorerPlugin, logger *slog.Logger) *SolveScheduleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SolveScheduleHandler{Cache: cache, Repo: repo, Publisher: publisher, Scorer: scorer, Logger: logger}
}

// Handle runs one solve end-to-end and returns the structured result.
// Transport/shape errors (missing schedule_input, no facilities, etc.)
// and failures to build or run the solver are returned as Go errors; every
// solver status, including INFEASIBLE and UNKNOWN, is reported inside the
// returned ScheduleResult per section 7.
func (h *SolveScheduleHandler) Handle(ctx context.Context, cmd SolveScheduleCommand) (*domain.ScheduleResult, error) {
	settings, facilities, employees, tasks, err := cmd.Request.ToDomain()
	if err != nil {
		return nil, err
	}
	if cmd.TimeLimitSec > 0 {
		settings.TimeLimitSec = cmd.TimeLimitSec
	}

	runID := uuid.New().String()
	logger := h.Logger.With("run_id", runID)

	cacheKey := hashRequest(cmd.Request, settings.TimeLimitSec)
	if h.Cache != nil {
		if cached, ok, cacheErr := h.Cache.Get(ctx, cacheKey); cacheErr == nil && ok {
			logger.Debug("solve result served from cache", "cache_key", cacheKey)
			return cached, nil
		}
	}

	expander := services.NewAvailabilityExpander(logger)
	avail := expander.Expand(employees, settings)

	builder := services.NewModelBuilder(settings, facilities, employees, tasks, avail)
	if h.Scorer != nil {
		logger.Debug("overriding built-in difficulty scorer with configured plugin")
		builder = builder.WithDifficultyScorer(&pluginScoreSource{plugin: h.Scorer, logger: logger})
	}

	driver := services.NewSolverDriver(builder, services.DefaultSolverDriverConfig(settings), logger)

	driverResult, err := driver.Run(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("solve schedule: %w", err)
	}

	result := h.toScheduleResult(driverResult, employees)

	h.publishAttempts(ctx, runID, driverResult.History)

	if h.Repo != nil {
		if saveErr := h.Repo.SaveRun(ctx, runID, result); saveErr != nil {
			logger.Warn("failed to persist run history", "error", saveErr)
		}
	}

	if h.Cache != nil && result.Succeeded() {
		if cacheErr := h.Cache.Set(ctx, cacheKey, result); cacheErr != nil {
			logger.Warn("failed to cache schedule result", "error", cacheErr)
		}
	}

	return result, nil
}

func (h *SolveScheduleHandler) toScheduleResult(dr *services.DriverResult, employees []domain.Employee) *domain.ScheduleResult {
	result := &domain.ScheduleResult{
		Status:             dr.Status,
		RunID:              dr.RunID,
		AppliedMultipliers: dr.Multipliers,
		History:            dr.History,
	}

	switch dr.Status {
	case domain.StatusOptimal, domain.StatusFeasible:
		extractor := services.NewResultExtractor(employees)
		assignments, shortages, diagnostics := extractor.Extract(dr.Built, dr.Response)
		result.Assignments = assignments
		result.ShortageShifts = shortages
		result.HoursWorkedByEmployee = make(map[string]int, len(diagnostics))
		result.DaysWorkedByEmployee = make(map[string]int, len(diagnostics))
		result.DifficultyByEmployee = make(map[string]float64, len(diagnostics))
		result.CostPerHourByEmployee = make(map[string]float64, len(diagnostics))
		for id, diag := range diagnostics {
			result.HoursWorkedByEmployee[id] = diag.HoursWorked
			result.DaysWorkedByEmployee[id] = diag.DaysWorked
			result.DifficultyByEmployee[id] = diag.TotalDifficultyScore
			result.CostPerHourByEmployee[id] = diag.CostPerHour
		}
		objective := dr.Response.GetObjectiveValue()
		result.Objective = &objective
		wallTime := dr.Response.GetWallTime()
		result.WallTimeSec = &wallTime
		if dr.Status == domain.StatusFeasible {
			result.Message = "best solution found within the solve time budget; not proven optimal"
		}
	case domain.StatusInfeasible:
		result.Message = fmt.Sprintf("no feasible schedule found after %d attempt(s); final multipliers: %+v", len(dr.History), dr.Multipliers)
	case domain.StatusModelInvalid:
		result.Message = "the CP-SAT model was rejected as invalid"
	default:
		result.Message = "solver returned an unknown status, possibly due to the wall-clock budget expiring before any solution was found"
	}

	return result
}

func (h *SolveScheduleHandler) publishAttempts(ctx context.Context, runID string, history []domain.Attempt) {
	if h.Publisher == nil {
		return
	}
	aggregateID := uuid.New()
	for _, attempt := range history {
		event := domain.NewAttemptCompleted(aggregateID, attempt, nil)
		metadata := sharedApp.NewEventMetadata(uuid.Nil)
		event.SetMetadata(metadata)
		payload, err := json.Marshal(event)
		if err != nil {
			h.Logger.Warn("failed to marshal attempt-completed event", "error", err)
			continue
		}
		if err := h.Publisher.Publish(ctx, domain.RoutingKeyAttemptCompleted, payload); err != nil {
			h.Logger.Warn("failed to publish attempt-completed event", "error", err)
		}
	}
	if len(history) > 0 {
		last := history[len(history)-1]
		if last.Status == domain.StatusInfeasible {
			exhausted := domain.NewRunExhausted(aggregateID, runID, len(history), last.Status)
			payload, err := json.Marshal(exhausted)
			if err == nil {
				_ = h.Publisher.Publish(ctx, domain.RoutingKeyRunExhausted, payload)
			}
		}
	}
}

// hashRequest derives a stable cache key from the input payload and the
// effective time limit (different time budgets may yield different
// solutions, so they must not share a cache entry).
func hashRequest(req application.ScheduleRequest, timeLimitSec int) string {
	payload, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(append(payload, []byte(fmt.Sprintf(":%d", timeLimitSec))...))
	return hex.EncodeToString(sum[:])
}

var _ sharedDomain.DomainEvent = domain.AttemptCompleted{}

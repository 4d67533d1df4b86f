package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/or-tools/ortools/sat/go/cpmodel"
	"github.com/sony/gobreaker/v2"

	"github.com/shiftsat/engine/internal/scheduling/domain"
	"github.com/shiftsat/engine/internal/shared/infrastructure/convert"
)

// SolverDriverConfig configures the BUILD/SOLVE retry loop.
type SolverDriverConfig struct {
	MaxRetryAttempts       int
	PenaltyReductionFactor float64
	MaxSearchWorkers       int
	TimeLimitSec           int

	CircuitBreakerEnabled bool
}

// DefaultSolverDriverConfig returns the config implied by settings.
func DefaultSolverDriverConfig(settings domain.Settings) SolverDriverConfig {
	return SolverDriverConfig{
		MaxRetryAttempts:       settings.MaxRetryAttempts,
		PenaltyReductionFactor: settings.PenaltyReductionFactor,
		MaxSearchWorkers:       settings.MaxSearchWorkers,
		TimeLimitSec:           settings.TimeLimitSec,
		CircuitBreakerEnabled:  true,
	}
}

// SolverDriver runs the BUILD -> SOLVE state machine: it rebuilds the model
// with a shrinking penalty-multiplier vector every time the solver reports
// INFEASIBLE, up to a fixed attempt cap, and records every attempt to an
// append-only history.
type SolverDriver struct {
	builder *ModelBuilder
	config  SolverDriverConfig
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker[*cpmodel.CpSolverResponse]
}

// NewSolverDriver creates a driver. A nil logger falls back to slog.Default.
func NewSolverDriver(builder *ModelBuilder, config SolverDriverConfig, logger *slog.Logger) *SolverDriver {
	if logger == nil {
		logger = slog.Default()
	}

	var breaker *gobreaker.CircuitBreaker[*cpmodel.CpSolverResponse]
	if config.CircuitBreakerEnabled {
		breaker = gobreaker.NewCircuitBreaker[*cpmodel.CpSolverResponse](gobreaker.Settings{
			Name:        "cpsat-solve",
			MaxRequests: 1,
			Interval:    0,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("solver circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}

	return &SolverDriver{builder: builder, config: config, logger: logger, breaker: breaker}
}

// DriverResult is the outcome of running the retry loop to completion: the
// final built model (needed by the result extractor), the solver response,
// and the append-only attempt history.
type DriverResult struct {
	RunID      string
	Built      *BuiltModel
	Response   *cpmodel.CpSolverResponse
	History    []domain.Attempt
	Multipliers domain.PenaltyMultipliers
	Status     domain.SolveStatus
}

// Run executes the BUILD->SOLVE loop and returns once a usable solution is
// found, the attempt cap is reached, or the solver reports a terminal
// MODEL_INVALID/UNKNOWN status.
func (d *SolverDriver) Run(ctx context.Context, runID string) (*DriverResult, error) {
	multipliers := domain.DefaultPenaltyMultipliers()
	maxAttempts := d.config.MaxRetryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var history []domain.Attempt
	var lastBuilt *BuiltModel
	var lastResponse *cpmodel.CpSolverResponse

	for attempt := 0; attempt < maxAttempts; attempt++ {
		d.logger.Debug("solve attempt starting", "run_id", runID, "attempt", attempt, "multipliers", multipliers)

		built, err := d.builder.Build(multipliers)
		if err != nil {
			return nil, fmt.Errorf("build model: %w", err)
		}
		lastBuilt = built

		response, err := d.solve(ctx, built)
		if err != nil {
			return nil, fmt.Errorf("solve model: %w", err)
		}
		lastResponse = response

		status := mapSolverStatus(response.GetStatus())
		history = append(history, domain.Attempt{
			RunID:           runID,
			RetryAttempt:    attempt,
			Multipliers:     multipliers,
			HardConstraints: built.HardConstraints,
			Stats:           built.Stats,
			Status:          status,
		})

		d.logger.Debug("solve attempt finished", "run_id", runID, "attempt", attempt, "status", status)

		switch status {
		case domain.StatusOptimal, domain.StatusFeasible:
			return &DriverResult{RunID: runID, Built: built, Response: response, History: history, Multipliers: multipliers, Status: status}, nil
		case domain.StatusInfeasible:
			if attempt == maxAttempts-1 {
				return &DriverResult{RunID: runID, Built: lastBuilt, Response: lastResponse, History: history, Multipliers: multipliers, Status: status}, nil
			}
			multipliers = multipliers.Scaled(d.config.PenaltyReductionFactor)
			continue
		default: // MODEL_INVALID, UNKNOWN
			return &DriverResult{RunID: runID, Built: lastBuilt, Response: lastResponse, History: history, Multipliers: multipliers, Status: status}, nil
		}
	}

	return &DriverResult{RunID: runID, Built: lastBuilt, Response: lastResponse, History: history, Multipliers: multipliers, Status: domain.StatusInfeasible}, nil
}

func (d *SolverDriver) solve(ctx context.Context, built *BuiltModel) (*cpmodel.CpSolverResponse, error) {
	m, err := built.Model.Model()
	if err != nil {
		return nil, fmt.Errorf("instantiate cp model: %w", err)
	}

	workers := d.config.MaxSearchWorkers
	if workers <= 0 || workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	if workers > 8 {
		workers = 8
	}

	timeLimit := d.config.TimeLimitSec
	if timeLimit <= 0 {
		timeLimit = 60
	}

	params := &cpmodel.SatParameters{}
	params.MaxTimeInSeconds = proto64(float64(timeLimit))
	params.NumSearchWorkers = proto32(convert.IntToInt32Clamped(workers))

	solveFn := func() (*cpmodel.CpSolverResponse, error) {
		return cpmodel.SolveCpModelWithParameters(m, params)
	}

	if d.breaker == nil {
		return solveFn()
	}
	return d.breaker.Execute(solveFn)
}

func mapSolverStatus(status cpmodel.CpSolverStatus) domain.SolveStatus {
	switch status.String() {
	case "OPTIMAL":
		return domain.StatusOptimal
	case "FEASIBLE":
		return domain.StatusFeasible
	case "INFEASIBLE":
		return domain.StatusInfeasible
	case "MODEL_INVALID":
		return domain.StatusModelInvalid
	default:
		return domain.StatusUnknown
	}
}

func proto64(v float64) *float64 { return &v }
func proto32(v int32) *int32     { return &v }

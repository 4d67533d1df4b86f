package domain

import (
	sharedDomain "github.com/shiftsat/engine/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	AggregateType = "ScheduleRun"

	RoutingKeyAttemptCompleted = "scheduling.attempt.completed"
	RoutingKeyRunExhausted     = "scheduling.run.exhausted"
)

// AttemptCompleted is emitted after every retry-loop attempt, successful or not.
type AttemptCompleted struct {
	sharedDomain.BaseEvent
	RunID        string  `json:"run_id"`
	RetryAttempt int     `json:"retry_attempt"`
	Status       string  `json:"status"`
	Objective    *float64 `json:"objective,omitempty"`
}

// NewAttemptCompleted creates an AttemptCompleted event.
func NewAttemptCompleted(runAggregateID uuid.UUID, attempt Attempt, objective *float64) AttemptCompleted {
	return AttemptCompleted{
		BaseEvent:    sharedDomain.NewBaseEvent(runAggregateID, AggregateType, RoutingKeyAttemptCompleted),
		RunID:        attempt.RunID,
		RetryAttempt: attempt.RetryAttempt,
		Status:       string(attempt.Status),
		Objective:    objective,
	}
}

// RunExhausted is emitted when the retry loop reaches MaxRetryAttempts
// without finding a feasible schedule.
type RunExhausted struct {
	sharedDomain.BaseEvent
	RunID       string `json:"run_id"`
	AttemptsMade int    `json:"attempts_made"`
	FinalStatus string `json:"final_status"`
}

// NewRunExhausted creates a RunExhausted event.
func NewRunExhausted(runAggregateID uuid.UUID, runID string, attemptsMade int, finalStatus SolveStatus) RunExhausted {
	return RunExhausted{
		BaseEvent:    sharedDomain.NewBaseEvent(runAggregateID, AggregateType, RoutingKeyRunExhausted),
		RunID:        runID,
		AttemptsMade: attemptsMade,
		FinalStatus:  string(finalStatus),
	}
}

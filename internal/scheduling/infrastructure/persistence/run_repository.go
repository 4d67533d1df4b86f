// Package persistence stores the append-only per-attempt audit history a
// solve run produces, so operators can later retrieve which relaxation
// produced a returned schedule (spec.md section 4.7).
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shiftsat/engine/internal/scheduling/application/commands"
	"github.com/shiftsat/engine/internal/scheduling/domain"
	sharedApp "github.com/shiftsat/engine/internal/shared/application"
	"github.com/shiftsat/engine/internal/shared/infrastructure/database"
)

// GenericRunRepository implements commands.RunRepository over any
// database.Connection (SQLite or PostgreSQL), mirroring the teacher's
// driver-agnostic persistence.Executor pattern. A run's result row and its
// append-only attempt rows are written together inside one UnitOfWork, since
// a reader must never observe one without the other.
type GenericRunRepository struct {
	conn database.Connection
	uow  sharedApp.UnitOfWork
}

// NewGenericRunRepository creates a repository bound to conn. Callers
// should have already ensured the schedule_runs and schedule_run_attempts
// tables exist (sqlite via migrations.RunSQLiteMigrations, postgres via
// EnsureSchema's inlined DDL).
func NewGenericRunRepository(conn database.Connection) *GenericRunRepository {
	return &GenericRunRepository{conn: conn, uow: database.NewUnitOfWork(conn)}
}

var _ commands.RunRepository = (*GenericRunRepository)(nil)

// SaveRun persists the result and appends its attempt history for runID, as
// a single unit of work: the schedule_runs row is upserted and every
// not-yet-seen attempt is inserted, or neither happens.
func (r *GenericRunRepository) SaveRun(ctx context.Context, runID string, result *domain.ScheduleResult) error {
	return sharedApp.WithUnitOfWork(ctx, r.uow, func(txCtx context.Context) error {
		resultJSON, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal schedule result: %w", err)
		}

		executor := database.ExecutorFromContext(txCtx, r.conn)
		if _, err := executor.Exec(txCtx, r.upsertRunQuery(), runID, string(result.Status), string(resultJSON)); err != nil {
			return fmt.Errorf("insert schedule run: %w", err)
		}

		for _, attempt := range result.History {
			attemptJSON, err := json.Marshal(attempt)
			if err != nil {
				return fmt.Errorf("marshal attempt %d: %w", attempt.RetryAttempt, err)
			}
			if _, err := executor.Exec(txCtx, r.insertAttemptQuery(), runID, attempt.RetryAttempt, string(attempt.Status), string(attemptJSON)); err != nil {
				return fmt.Errorf("insert attempt %d: %w", attempt.RetryAttempt, err)
			}
		}
		return nil
	})
}

// upsertRunQuery returns the dialect-appropriate upsert, since the Executor
// abstraction spans both pgx's native "$N" placeholders and database/sql's
// "?" placeholders (modernc.org/sqlite).
func (r *GenericRunRepository) upsertRunQuery() string {
	if r.conn.Driver() == database.DriverPostgres {
		return `INSERT INTO schedule_runs (run_id, status, result_json) VALUES ($1, $2, $3)
		        ON CONFLICT (run_id) DO UPDATE SET status = excluded.status, result_json = excluded.result_json`
	}
	return `INSERT INTO schedule_runs (run_id, status, result_json) VALUES (?, ?, ?)
	        ON CONFLICT(run_id) DO UPDATE SET status = excluded.status, result_json = excluded.result_json`
}

// insertAttemptQuery inserts one attempt row, silently skipping it if the
// same (run_id, retry_attempt) was already recorded: attempts are
// append-only and never rewritten once observed.
func (r *GenericRunRepository) insertAttemptQuery() string {
	if r.conn.Driver() == database.DriverPostgres {
		return `INSERT INTO schedule_run_attempts (run_id, retry_attempt, status, attempt_json) VALUES ($1, $2, $3, $4)
		        ON CONFLICT (run_id, retry_attempt) DO NOTHING`
	}
	return `INSERT INTO schedule_run_attempts (run_id, retry_attempt, status, attempt_json) VALUES (?, ?, ?, ?)
	        ON CONFLICT(run_id, retry_attempt) DO NOTHING`
}

func (r *GenericRunRepository) attemptsQuery() string {
	if r.conn.Driver() == database.DriverPostgres {
		return `SELECT attempt_json FROM schedule_run_attempts WHERE run_id = $1`
	}
	return `SELECT attempt_json FROM schedule_run_attempts WHERE run_id = ?`
}

// History returns the persisted attempt history for runID, ordered by
// retry attempt.
func (r *GenericRunRepository) History(ctx context.Context, runID string) ([]domain.Attempt, error) {
	executor := database.ExecutorFromContext(ctx, r.conn)
	rows, err := executor.Query(ctx, r.attemptsQuery(), runID)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	var history []domain.Attempt
	for rows.Next() {
		var attemptJSON string
		if err := rows.Scan(&attemptJSON); err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		var attempt domain.Attempt
		if err := json.Unmarshal([]byte(attemptJSON), &attempt); err != nil {
			return nil, fmt.Errorf("unmarshal attempt: %w", err)
		}
		history = append(history, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt rows: %w", err)
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, database.ErrNoRows)
	}

	sort.Slice(history, func(i, j int) bool { return history[i].RetryAttempt < history[j].RetryAttempt })
	return history, nil
}

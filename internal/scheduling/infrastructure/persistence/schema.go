package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shiftsat/engine/internal/shared/infrastructure/database"
	"github.com/shiftsat/engine/internal/shared/infrastructure/migrations"
)

// sqliteDBProvider is satisfied by sqlite.Connection, which exposes the
// underlying *sql.DB the embedded migration runner needs.
type sqliteDBProvider interface {
	DB() *sql.DB
}

// EnsureSchema creates the schedule_runs and schedule_run_attempts tables if
// they don't already exist. SQLite goes through the teacher's
// embedded-migration runner; PostgreSQL has no equivalent runner in this
// pack, so its DDL is inlined here (two idempotent CREATE TABLE statements,
// consistent with the SQLite migration file).
func EnsureSchema(ctx context.Context, conn database.Connection) error {
	if sqliteConn, ok := conn.(sqliteDBProvider); ok {
		if err := migrations.RunSQLiteMigrations(ctx, sqliteConn.DB()); err != nil {
			return fmt.Errorf("run sqlite migrations: %w", err)
		}
		return nil
	}

	_, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schedule_runs (
		run_id       TEXT PRIMARY KEY,
		status       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		result_json  JSONB NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create schedule_runs table: %w", err)
	}

	_, err = conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schedule_run_attempts (
		run_id        TEXT NOT NULL,
		retry_attempt INTEGER NOT NULL,
		status        TEXT NOT NULL,
		attempt_json  JSONB NOT NULL,
		PRIMARY KEY (run_id, retry_attempt)
	)`)
	if err != nil {
		return fmt.Errorf("create schedule_run_attempts table: %w", err)
	}
	return nil
}

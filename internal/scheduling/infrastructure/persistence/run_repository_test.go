package persistence_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftsat/engine/internal/scheduling/domain"
	"github.com/shiftsat/engine/internal/scheduling/infrastructure/persistence"
	"github.com/shiftsat/engine/internal/shared/infrastructure/database"
	"github.com/shiftsat/engine/internal/shared/infrastructure/database/sqlite"
)

func newTestConnection(t *testing.T) database.Connection {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "shiftsat-runrepo-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	conn, err := sqlite.NewConnection(context.Background(), database.Config{
		SQLitePath: filepath.Join(tmpDir, "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, persistence.EnsureSchema(context.Background(), conn))
	return conn
}

func TestGenericRunRepository_SaveRunThenHistory(t *testing.T) {
	conn := newTestConnection(t)
	repo := persistence.NewGenericRunRepository(conn)
	ctx := context.Background()

	result := &domain.ScheduleResult{
		Status: domain.StatusOptimal,
		RunID:  "run-1",
		History: []domain.Attempt{
			{RunID: "run-1", RetryAttempt: 0, Status: domain.StatusInfeasible},
			{RunID: "run-1", RetryAttempt: 1, Status: domain.StatusOptimal},
		},
	}

	require.NoError(t, repo.SaveRun(ctx, "run-1", result))

	history, err := repo.History(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 0, history[0].RetryAttempt)
	assert.Equal(t, domain.StatusInfeasible, history[0].Status)
	assert.Equal(t, 1, history[1].RetryAttempt)
	assert.Equal(t, domain.StatusOptimal, history[1].Status)
}

func TestGenericRunRepository_SaveRunIsIdempotentOnReplay(t *testing.T) {
	conn := newTestConnection(t)
	repo := persistence.NewGenericRunRepository(conn)
	ctx := context.Background()

	result := &domain.ScheduleResult{
		Status:  domain.StatusOptimal,
		RunID:   "run-2",
		History: []domain.Attempt{{RunID: "run-2", RetryAttempt: 0, Status: domain.StatusOptimal}},
	}

	require.NoError(t, repo.SaveRun(ctx, "run-2", result))
	// Re-saving the same run (e.g. a retried handler call) must not
	// duplicate the append-only attempt row.
	require.NoError(t, repo.SaveRun(ctx, "run-2", result))

	history, err := repo.History(ctx, "run-2")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestGenericRunRepository_HistoryUnknownRun(t *testing.T) {
	conn := newTestConnection(t)
	repo := persistence.NewGenericRunRepository(conn)

	_, err := repo.History(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrNoRows)
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classify-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_CreateAndListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "patents.xlsx", "taxonomy.json")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "patents.xlsx", runs[0].InputFile)
	assert.Empty(t, runs[0].JobID)
}

func TestSQLiteStore_FinishRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "patents.xlsx", "taxonomy.json")
	require.NoError(t, err)

	run.JobID = "batch_abc123"
	run.Status = model.RunStatusCompleted
	run.TotalRows = 10
	run.Sent = 8
	run.Skipped = 2
	run.Missing = 1
	run.ParseErrors = 1
	require.NoError(t, s.FinishRun(ctx, run))
	assert.NotNil(t, run.FinishedAt)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, "batch_abc123", got.JobID)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, 10, got.TotalRows)
	assert.Equal(t, 8, got.Sent)
	assert.Equal(t, 2, got.Skipped)
	assert.Equal(t, 1, got.Missing)
	assert.Equal(t, 1, got.ParseErrors)
	require.NotNil(t, got.FinishedAt)
}

func TestSQLiteStore_FinishRunFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "patents.xlsx", "taxonomy.json")
	require.NoError(t, err)

	run.Status = model.RunStatusFailed
	run.Error = "batch job batch_x finished as failed"
	require.NoError(t, s.FinishRun(ctx, run))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Equal(t, run.Error, runs[0].Error)
}

func TestSQLiteStore_FinishUnknownRun(t *testing.T) {
	s := newTestStore(t)

	err := s.FinishRun(context.Background(), &model.RunRecord{ID: "nope", Status: model.RunStatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteStore_ListRunsOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := s.CreateRun(ctx, "in.csv", "tax.json")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, run := range all {
		assert.Contains(t, ids, run.ID)
	}
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

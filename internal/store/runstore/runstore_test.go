package runstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := uuid.NewString()
	require.NoError(t, s.InsertRun(ctx, Run{
		ID:            id,
		ContentHash:   "abc123",
		SourceSnippet: "RSI divergence bounce",
		DateFolder:    "03_15_2026",
	}))

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, "abc123", got.ContentHash)
	assert.True(t, got.CompletedAt.IsZero())

	require.NoError(t, s.SetStrategyName(ctx, id, "BouncyDiverger"))
	require.NoError(t, s.Finish(ctx, id, StatusOK, ""))

	got, err = s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "BouncyDiverger", got.StrategyName)
	assert.Equal(t, StatusOK, got.Status)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestListRunsOrderedNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertRun(ctx, Run{
			ID:          uuid.NewString(),
			ContentHash: "h",
			DateFolder:  "03_15_2026",
		}))
	}
	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestIterationsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID := uuid.NewString()
	require.NoError(t, s.InsertRun(ctx, Run{ID: runID, ContentHash: "h", DateFolder: "03_15_2026"}))

	_, err := s.InsertIteration(ctx, Iteration{
		RunID:          runID,
		Iteration:      0,
		Classification: "FAILURE",
		ReturnCode:     sql.NullInt64{Int64: 1, Valid: true},
		ScriptPath:     "/tmp/a.py",
	})
	require.NoError(t, err)
	_, err = s.InsertIteration(ctx, Iteration{
		RunID:          runID,
		Iteration:      1,
		Classification: "SUCCESS_AT_TARGET",
		ReturnPct:      sql.NullFloat64{Float64: 73.2, Valid: true},
		ReturnCode:     sql.NullInt64{Int64: 0, Valid: true},
	})
	require.NoError(t, err)

	its, err := s.ListIterations(ctx, runID)
	require.NoError(t, err)
	require.Len(t, its, 2)
	assert.Equal(t, "FAILURE", its[0].Classification)
	assert.Equal(t, 1, its[1].Iteration)
	assert.InDelta(t, 73.2, its[1].ReturnPct.Float64, 1e-9)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

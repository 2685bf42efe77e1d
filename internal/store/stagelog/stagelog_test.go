package stagelog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "stages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndQueryByRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, StageCallModel{
		RunID:        "run-1",
		StrategyName: "BouncyDiverger",
		Stage:        "research",
		Provider:     "openai",
		Model:        "gpt-4o",
		DurationMS:   1200,
	}, map[string]any{"tokens": 812}))
	require.NoError(t, s.Record(ctx, StageCallModel{
		RunID:   "run-1",
		Stage:   "backtest",
		Skipped: true,
	}, nil))
	require.NoError(t, s.Record(ctx, StageCallModel{
		RunID: "run-2",
		Stage: "research",
		Error: "provider unavailable",
	}, nil))

	calls, err := s.ByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "research", calls[0].Stage)
	assert.True(t, calls[1].Skipped)
	assert.Equal(t, int64(812), gjson.GetBytes(calls[0].Meta, "tokens").Int())
}

func TestRecentLimits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, StageCallModel{RunID: "r", Stage: "debug"}, nil))
	}
	calls, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, calls, 3)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}

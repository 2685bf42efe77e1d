package report

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rbi/internal/artifact"
)

func TestRenderLoopChart(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir(), "03_15_2026")
	require.NoError(t, err)

	points := []LoopPoint{
		{Iteration: 0, Classification: "FAILURE"},
		{Iteration: 1, Classification: "SUCCESS_BELOW_TARGET", ReturnPct: 12.5, HasReturn: true},
		{Iteration: 2, Classification: "SUCCESS_AT_TARGET", ReturnPct: 73.2, HasReturn: true},
	}
	path, err := RenderLoopChart(store, "BouncyDiverger", 50, points)
	require.NoError(t, err)
	assert.Equal(t, store.ChartPath("BouncyDiverger"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BouncyDiverger repair loop")
	assert.Contains(t, string(data), "echarts")
}

func TestRenderLoopChartNoPoints(t *testing.T) {
	store, err := artifact.NewStore(t.TempDir(), "03_15_2026")
	require.NoError(t, err)

	_, err = RenderLoopChart(store, "X", 50, nil)
	assert.Error(t, err)
}

package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), "03_15_2025")
	require.NoError(t, err)
	return s
}

func TestPathScheme(t *testing.T) {
	s := newTestStore(t)
	base := filepath.Join(s.Root(), "03_15_2025")

	assert.Equal(t, filepath.Join(base, "research", "BouncyDiverger_strategy.txt"),
		s.Path(KindResearch, "BouncyDiverger", 0))
	assert.Equal(t, filepath.Join(base, "backtests", "BouncyDiverger_BT.py"),
		s.Path(KindBacktest, "BouncyDiverger", 0))
	assert.Equal(t, filepath.Join(base, "backtests_package", "BouncyDiverger_PKG.py"),
		s.Path(KindPackage, "BouncyDiverger", 0))
	assert.Equal(t, filepath.Join(base, "backtests_final", "BouncyDiverger_BTFinal.py"),
		s.Path(KindFinal, "BouncyDiverger", 0))
	assert.Equal(t, filepath.Join(base, "backtests_optimized", "BouncyDiverger_OPT_v3.py"),
		s.Path(KindOptimized, "BouncyDiverger", 3))
	assert.Equal(t, filepath.Join(base, "backtests_optimized", "BouncyDiverger_TARGET_HIT.py"),
		s.TargetHitPath("BouncyDiverger"))
}

func TestExecutionResultPath(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2025, 3, 15, 10, 30, 45, 0, time.UTC)
	assert.Equal(t,
		filepath.Join(s.Root(), "03_15_2025", "execution_results", "Alpha_20250315_103045.json"),
		s.ExecutionResultPath("Alpha", ts))
}

func TestWriteOnceAtCanonicalPath(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Write(KindBacktest, "Alpha", 0, []byte("v1"))
	require.NoError(t, err)

	// 二次写入不覆盖既有字节
	again, err := s.Write(KindBacktest, "Alpha", 0, []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, path, again)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestOptimizedVersionsGetDistinctPaths(t *testing.T) {
	s := newTestStore(t)
	p1, err := s.Write(KindOptimized, "Alpha", 1, []byte("iter1"))
	require.NoError(t, err)
	p2, err := s.Write(KindOptimized, "Alpha", 2, []byte("iter2"))
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	d1, _ := os.ReadFile(p1)
	d2, _ := os.ReadFile(p2)
	assert.Equal(t, "iter1", string(d1))
	assert.Equal(t, "iter2", string(d2))
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Write(KindResearch, "Alpha", 0, []byte("text"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewStoreRequiresRoot(t *testing.T) {
	_, err := NewStore("  ", "")
	assert.Error(t, err)
}

func TestNewStoreDefaultsToToday(t *testing.T) {
	s, err := NewStore(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, time.Now().Format(DateFolderLayout), s.DateFolder())
}

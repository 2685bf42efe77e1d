package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunCapturesOutput(t *testing.T) {
	e := New("sh", "", 5*time.Second)
	path := writeScript(t, "echo 'Return [%]   12.5'; echo oops >&2")

	res := e.Run(context.Background(), path)
	assert.True(t, res.Success())
	assert.Contains(t, res.Stdout, "Return [%]   12.5")
	assert.Contains(t, res.Stderr, "oops")
	assert.False(t, res.TimedOut)
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestRunNonZeroExit(t *testing.T) {
	e := New("sh", "", 5*time.Second)
	path := writeScript(t, "echo broken >&2; exit 3")

	res := e.Run(context.Background(), path)
	assert.False(t, res.Success())
	assert.Equal(t, 3, res.ReturnCode)
}

func TestRunTimeout(t *testing.T) {
	e := New("sh", "", 200*time.Millisecond)
	path := writeScript(t, "sleep 5")

	start := time.Now()
	res := e.Run(context.Background(), path)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Success())
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunMissingInterpreter(t *testing.T) {
	e := New("definitely-not-an-interpreter", "", time.Second)
	res := e.Run(context.Background(), "whatever.py")
	assert.False(t, res.Success())
	assert.NotEmpty(t, res.Stderr)
}

func TestNewDefaults(t *testing.T) {
	e := New("", "", 0)
	assert.Equal(t, "python3", e.Interpreter)
	assert.Equal(t, 300*time.Second, e.Timeout)
}

package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndLoadCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	in := []Candle{
		{Time: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Time: time.Date(2026, 3, 15, 0, 15, 0, 0, time.UTC), Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 200},
	}
	require.NoError(t, WriteCSV(path, in))

	out, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[0].Time, out[0].Time)
	assert.InDelta(t, 2.5, out[1].Close, 1e-9)
}

func TestLoadCSVNormalizesColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	body := "Unnamed: 0,open,HIGH,low,Adj Close,vol\n0,1,2,0.5,1.5,100\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	out, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.InDelta(t, 1.5, out[0].Close, 1e-9)
	assert.InDelta(t, 100, out[0].Volume, 1e-9)
}

func TestLoadCSVMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("Open,High,Low,Close\n1,2,0.5,1.5\n"), 0o644))

	_, err := LoadCSV(path)
	assert.ErrorContains(t, err, "Volume")
}

func TestDescribe(t *testing.T) {
	candles := make([]Candle, 60)
	for i := range candles {
		base := 100 + 5*math.Sin(float64(i)/5)
		candles[i] = Candle{
			Open: base, High: base + 2, Low: base - 2, Close: base + 1, Volume: 1000,
		}
	}
	snap, err := Describe(candles)
	require.NoError(t, err)
	assert.Equal(t, 60, snap.Candles)
	assert.Greater(t, snap.RSI14, 0.0)
	assert.Less(t, snap.RSI14, 100.0)
	assert.Greater(t, snap.ATR14, 0.0)
	assert.NotEmpty(t, snap.String())
}

func TestDescribeNeedsEnoughCandles(t *testing.T) {
	_, err := Describe(make([]Candle, 10))
	assert.Error(t, err)
}

package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantforge/backcast/internal/core"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeCSV(t, `time,open,high,low,close,volume
2024-01-02,100,102,99,101,50000
2024-01-03,101,104,100,103,60000
2024-01-04,103,105,102,104,55000
`)

	bars, err := LoadCSV(path, "AAPL")
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, "AAPL", bars[0].Symbol)
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 102.0, bars[0].High)
	assert.Equal(t, 99.0, bars[0].Low)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 50000.0, bars[0].Volume)
	assert.True(t, bars[1].Time.After(bars[0].Time))
}

func TestLoadCSV_NoHeader(t *testing.T) {
	path := writeCSV(t, `2024-01-02,100,102,99,101,50000
2024-01-03,101,104,100,103,60000
`)

	bars, err := LoadCSV(path, "AAPL")
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestLoadCSV_TimestampFormats(t *testing.T) {
	path := writeCSV(t, `2024-01-02T09:30:00Z,100,102,99,101,50000
2024-01-02 10:30:00,101,104,100,103,60000
1704207000,103,105,102,104,55000
`)

	bars, err := LoadCSV(path, "AAPL")
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestLoadCSV_GapsAccepted(t *testing.T) {
	// A missing week between rows is fine as long as order holds.
	path := writeCSV(t, `2024-01-02,100,102,99,101,50000
2024-01-15,101,104,100,103,60000
`)

	bars, err := LoadCSV(path, "AAPL")
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestLoadCSV_OutOfOrderRejected(t *testing.T) {
	path := writeCSV(t, `2024-01-03,100,102,99,101,50000
2024-01-02,101,104,100,103,60000
`)

	_, err := LoadCSV(path, "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoData)
	assert.Contains(t, err.Error(), "ascending")
}

func TestLoadCSV_MalformedBarDropped(t *testing.T) {
	// Second row has low above high; it is dropped, not fatal.
	path := writeCSV(t, `2024-01-02,100,102,99,101,50000
2024-01-03,101,100,104,103,60000
2024-01-04,103,105,102,104,55000
`)

	bars, err := LoadCSV(path, "AAPL")
	require.NoError(t, err)
	assert.Len(t, bars, 2)
}

func TestLoadCSV_BadNumberFatal(t *testing.T) {
	path := writeCSV(t, `2024-01-02,100,102,ninety-nine,101,50000
`)

	_, err := LoadCSV(path, "AAPL")
	assert.Error(t, err)
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"), "AAPL")
	assert.ErrorIs(t, err, core.ErrNoData)
}

func TestLoadCSV_EmptyFile(t *testing.T) {
	path := writeCSV(t, "time,open,high,low,close,volume\n")
	_, err := LoadCSV(path, "AAPL")
	assert.ErrorIs(t, err, core.ErrNoData)
}

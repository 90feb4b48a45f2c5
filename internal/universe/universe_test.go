package universe

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejames/nowcast/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "error")
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeTemp(t, "ticker\nAAPL\nmsft\nBRK.B\n# a comment\nTSLA\n")

	u, err := NewLoader(testLogger()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "BRK-B", "MSFT", "TSLA"}, u.Tickers)
	assert.Equal(t, path, u.Source)
	assert.Empty(t, u.Excluded)
}

func TestLoadRejectsInvalidAndDuplicate(t *testing.T) {
	path := writeTemp(t, "symbol\nAAPL\nAAPL\nTOOLONGX\n123\nMSFT\n")

	u, err := NewLoader(testLogger()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, u.Tickers)
	assert.Equal(t, "duplicate", u.Excluded["AAPL"])
	assert.Equal(t, "not a valid ticker", u.Excluded["TOOLONGX"])
	assert.Equal(t, "not a valid ticker", u.Excluded["123"])
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	u, err := NewLoader(testLogger()).Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)

	assert.Equal(t, "builtin", u.Source)
	assert.Equal(t, DefaultTickers, u.Tickers)
}

func TestLoadEmptyPathUsesBuiltin(t *testing.T) {
	u, err := NewLoader(testLogger()).Load("")
	require.NoError(t, err)

	assert.Equal(t, "builtin", u.Source)
	assert.True(t, u.Contains("NVDA"))
	assert.False(t, u.Contains("GME"))
}

func TestLoadAllRowsInvalid(t *testing.T) {
	path := writeTemp(t, "ticker\n123\n!!\n")

	_, err := NewLoader(testLogger()).Load(path)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"aapl", "AAPL"},
		{" BRK.B ", "BRK-B"},
		{"brk.b", "BRK-B"},
		{"MSFT", "MSFT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}

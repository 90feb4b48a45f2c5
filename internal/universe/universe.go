package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ejames/nowcast/pkg/logger"
)

// tickerPattern is the shape of a normalized US ticker, including
// class-share suffixes like BRK-B
var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}(-[A-Z])?$`)

// DefaultTickers is the built-in watchlist used when no universe file
// is configured or the configured file is missing
var DefaultTickers = []string{
	"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "TSLA", "BRK-B",
}

// Universe is the resolved set of tickers a run operates on. Excluded
// maps each rejected raw entry to the reason it was dropped.
type Universe struct {
	Tickers  []string
	Excluded map[string]string
	Source   string // file path, or "builtin" for the default list
}

// Contains reports whether a normalized ticker is in the universe
func (u *Universe) Contains(ticker string) bool {
	for _, t := range u.Tickers {
		if t == ticker {
			return true
		}
	}
	return false
}

// Loader reads ticker universes from CSV watchlist files
type Loader struct {
	logger *logger.Logger
}

// NewLoader creates a universe loader
func NewLoader(log *logger.Logger) *Loader {
	return &Loader{logger: log.Component("universe")}
}

// Load resolves the universe from the given CSV path. An empty path or
// a missing file falls back to the built-in default list rather than
// failing, so a fresh checkout runs without any setup.
func (l *Loader) Load(path string) (*Universe, error) {
	if path == "" {
		return l.builtin(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.WithField("path", path).Warn("Universe file not found, using builtin list")
			return l.builtin(), nil
		}
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer f.Close()

	u, err := l.parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse universe file %s: %w", path, err)
	}
	u.Source = path

	l.logger.WithFields(map[string]interface{}{
		"path":     path,
		"tickers":  len(u.Tickers),
		"excluded": len(u.Excluded),
	}).Info("Universe loaded")

	return u, nil
}

// parse reads a one-ticker-per-row CSV. A header row whose first cell
// is "ticker" or "symbol" is skipped. Extra columns are ignored.
func (l *Loader) parse(r io.Reader) (*Universe, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	u := &Universe{Excluded: make(map[string]string)}
	seen := make(map[string]bool)

	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 0 {
			continue
		}

		raw := strings.TrimSpace(record[0])
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if line == 1 && isHeader(raw) {
			continue
		}

		ticker := Normalize(raw)
		if !tickerPattern.MatchString(ticker) {
			u.Excluded[raw] = "not a valid ticker"
			continue
		}
		if seen[ticker] {
			u.Excluded[raw] = "duplicate"
			continue
		}

		seen[ticker] = true
		u.Tickers = append(u.Tickers, ticker)
	}

	if len(u.Tickers) == 0 {
		return nil, fmt.Errorf("no valid tickers")
	}

	sort.Strings(u.Tickers)
	return u, nil
}

func (l *Loader) builtin() *Universe {
	return &Universe{
		Tickers:  append([]string(nil), DefaultTickers...),
		Excluded: make(map[string]string),
		Source:   "builtin",
	}
}

// Normalize maps a raw symbol to the canonical form used throughout
// the pipeline: uppercase, class shares dash-separated (BRK.B → BRK-B)
func Normalize(raw string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(raw)), ".", "-")
}

func isHeader(cell string) bool {
	switch strings.ToLower(cell) {
	case "ticker", "symbol", "tickers", "symbols":
		return true
	}
	return false
}

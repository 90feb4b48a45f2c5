package contracts

import "time"

// DateFormat is the canonical day format used for keys and logging
const DateFormat = "2006-01-02"

// Key identifies one (date, ticker) observation. The date is stored in
// canonical string form so keys compare and hash independently of
// time.Time location or monotonic clock state.
type Key struct {
	Date   string `json:"date"`
	Ticker string `json:"ticker"`
}

// NewKey builds a Key from a timestamp and ticker
func NewKey(date time.Time, ticker string) Key {
	return Key{Date: date.Format(DateFormat), Ticker: ticker}
}

// Time parses the key date back into a time.Time (UTC midnight)
func (k Key) Time() time.Time {
	t, _ := time.Parse(DateFormat, k.Date)
	return t
}

// Less orders keys by date, then ticker
func (k Key) Less(other Key) bool {
	if k.Date != other.Date {
		return k.Date < other.Date
	}
	return k.Ticker < other.Ticker
}

// AttentionRecord is one day of social/news buzz for a ticker,
// produced by the attention collector. Immutable after creation.
type AttentionRecord struct {
	Date          time.Time `json:"date"`
	Ticker        string    `json:"ticker"`
	MentionCount  int       `json:"mention_count"`
	MeanSentiment float64   `json:"mean_sentiment"` // compound score in [-1, 1]
	SourceCount   int       `json:"source_count"`
}

// PriceRecord is one trading day of OHLCV for a ticker, plus any
// indicator fields precomputed upstream. Immutable after creation.
type PriceRecord struct {
	Date       time.Time          `json:"date"`
	Ticker     string             `json:"ticker"`
	Open       float64            `json:"open"`
	High       float64            `json:"high"`
	Low        float64            `json:"low"`
	Close      float64            `json:"close"`
	Volume     int64              `json:"volume"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

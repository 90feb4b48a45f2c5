package nowcast

import (
	"math"
	"sort"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/pkg/logger"
)

// Normalizer maps raw per-source records into canonical (date, ticker)
// keyed partial feature vectors. It never fabricates values for keys it
// did not observe: a key missing from a source stays missing, so the
// table builder can mark it absent instead of asserting "no buzz".
type Normalizer struct {
	logger *logger.Logger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(log *logger.Logger) *Normalizer {
	return &Normalizer{logger: log.Component("nowcast.normalizer")}
}

// AttentionResult is the canonical view of one attention batch
type AttentionResult struct {
	Vectors map[contracts.Key]map[string]float64
	Dropped int // malformed records dropped from the batch
}

// PriceResult is the canonical view of one price batch
type PriceResult struct {
	// History holds validated records per ticker, ascending by date.
	History map[string][]contracts.PriceRecord
	Dropped int
}

// NormalizeAttention validates and keys attention records. Malformed
// records (unresolvable date or ticker, out-of-domain values) are
// dropped and counted, not fatal to the batch. Duplicate keys within
// the batch merge the way the upstream aggregator would have: mentions
// summed, sentiment mention-weighted, sources summed.
func (n *Normalizer) NormalizeAttention(records []contracts.AttentionRecord) AttentionResult {
	res := AttentionResult{Vectors: make(map[contracts.Key]map[string]float64)}

	for _, rec := range records {
		if err := validateAttention(rec); err != nil {
			n.logger.WithError(err).Warn("Dropping attention record")
			res.Dropped++
			continue
		}

		key := contracts.NewKey(rec.Date, rec.Ticker)
		if prev, ok := res.Vectors[key]; ok {
			mergeAttention(prev, rec)
			continue
		}

		res.Vectors[key] = map[string]float64{
			"mentions":      float64(rec.MentionCount),
			"avg_sentiment": rec.MeanSentiment,
			"source_count":  float64(rec.SourceCount),
		}
	}

	if res.Dropped > 0 {
		n.logger.WithFields(map[string]interface{}{
			"total":   len(records),
			"dropped": res.Dropped,
		}).Warn("Attention batch had malformed records")
	}

	return res
}

// NormalizePrices validates and keys price records, grouping them into
// per-ticker histories sorted by date. Duplicate (date, ticker) pairs
// keep the first record; the rest are counted as malformed.
func (n *Normalizer) NormalizePrices(records []contracts.PriceRecord) PriceResult {
	res := PriceResult{History: make(map[string][]contracts.PriceRecord)}
	seen := make(map[contracts.Key]struct{}, len(records))

	for _, rec := range records {
		if err := validatePrice(rec); err != nil {
			n.logger.WithError(err).Warn("Dropping price record")
			res.Dropped++
			continue
		}

		key := contracts.NewKey(rec.Date, rec.Ticker)
		if _, dup := seen[key]; dup {
			n.logger.WithError(&contracts.MalformedRecordError{
				Source: "prices",
				Ticker: rec.Ticker,
				Reason: "duplicate (date, ticker) row",
			}).Warn("Dropping price record")
			res.Dropped++
			continue
		}
		seen[key] = struct{}{}

		res.History[rec.Ticker] = append(res.History[rec.Ticker], rec)
	}

	for ticker := range res.History {
		h := res.History[ticker]
		sort.Slice(h, func(i, j int) bool { return h[i].Date.Before(h[j].Date) })
	}

	if res.Dropped > 0 {
		n.logger.WithFields(map[string]interface{}{
			"total":   len(records),
			"dropped": res.Dropped,
		}).Warn("Price batch had malformed records")
	}

	return res
}

func validateAttention(rec contracts.AttentionRecord) error {
	switch {
	case rec.Date.IsZero():
		return &contracts.MalformedRecordError{Source: "attention", Ticker: rec.Ticker, Reason: "no resolvable date"}
	case rec.Ticker == "":
		return &contracts.MalformedRecordError{Source: "attention", Reason: "no resolvable ticker"}
	case rec.MentionCount < 0:
		return &contracts.MalformedRecordError{Source: "attention", Ticker: rec.Ticker, Reason: "negative mention count"}
	case rec.SourceCount < 0:
		return &contracts.MalformedRecordError{Source: "attention", Ticker: rec.Ticker, Reason: "negative source count"}
	case math.IsNaN(rec.MeanSentiment) || rec.MeanSentiment < -1 || rec.MeanSentiment > 1:
		return &contracts.MalformedRecordError{Source: "attention", Ticker: rec.Ticker, Reason: "sentiment outside [-1, 1]"}
	}
	return nil
}

func validatePrice(rec contracts.PriceRecord) error {
	switch {
	case rec.Date.IsZero():
		return &contracts.MalformedRecordError{Source: "prices", Ticker: rec.Ticker, Reason: "no resolvable date"}
	case rec.Ticker == "":
		return &contracts.MalformedRecordError{Source: "prices", Reason: "no resolvable ticker"}
	case math.IsNaN(rec.Close) || rec.Close <= 0:
		return &contracts.MalformedRecordError{Source: "prices", Ticker: rec.Ticker, Reason: "non-positive close"}
	case rec.Volume < 0:
		return &contracts.MalformedRecordError{Source: "prices", Ticker: rec.Ticker, Reason: "negative volume"}
	}
	return nil
}

// mergeAttention folds a duplicate attention record into an existing
// vector: mentions and sources add, sentiment becomes the
// mention-weighted mean.
func mergeAttention(vec map[string]float64, rec contracts.AttentionRecord) {
	prevMentions := vec["mentions"]
	newMentions := prevMentions + float64(rec.MentionCount)

	if newMentions > 0 {
		vec["avg_sentiment"] = (vec["avg_sentiment"]*prevMentions + rec.MeanSentiment*float64(rec.MentionCount)) / newMentions
	}
	vec["mentions"] = newMentions
	vec["source_count"] += float64(rec.SourceCount)
}

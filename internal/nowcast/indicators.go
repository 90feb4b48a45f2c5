package nowcast

import (
	"math"

	"github.com/ejames/nowcast/internal/contracts"
)

// Lookback windows for price-derived features. A feature whose full
// window is not available at a date is absent there, never partial.
const (
	lookbackR1    = 1
	lookbackR5    = 5
	lookbackR20   = 20
	lookbackVol   = 20  // rolling std window over daily returns
	lookbackRSI   = 14  // Wilder smoothing window
	lookback52Wk  = 252 // trading days in the 52-week extremes window
	min52WkPrior  = 20  // minimum prior trading days before 52-week
	// distances are considered meaningful
)

// computeDerived produces the price-derived feature columns for one
// ticker's history, one map per history index. Every value at index i
// is computed strictly from closes at indices <= i, which is the
// causality invariant the whole pipeline rests on.
func computeDerived(history []contracts.PriceRecord) []map[string]float64 {
	n := len(history)
	out := make([]map[string]float64, n)

	closes := make([]float64, n)
	for i, rec := range history {
		closes[i] = rec.Close
		out[i] = make(map[string]float64, len(contracts.FeatureColumns))
	}

	// Daily returns; returns[i] is the close-to-close return ending at i
	returns := make([]float64, n)
	for i := 1; i < n; i++ {
		returns[i] = closes[i]/closes[i-1] - 1
	}

	// Lagged returns
	for i := 0; i < n; i++ {
		if i >= lookbackR1 {
			out[i]["r1"] = closes[i]/closes[i-lookbackR1] - 1
		}
		if i >= lookbackR5 {
			out[i]["r5"] = closes[i]/closes[i-lookbackR5] - 1
		}
		if i >= lookbackR20 {
			out[i]["r20"] = closes[i]/closes[i-lookbackR20] - 1
		}
	}

	// Rolling volatility of daily returns (sample std over the last
	// lookbackVol returns, which requires lookbackVol prior days)
	for i := lookbackVol; i < n; i++ {
		out[i]["vol20"] = sampleStd(returns[i-lookbackVol+1 : i+1])
	}

	// Wilder RSI: seed with the simple mean of the first window of
	// gains/losses, then smooth recursively
	if n > lookbackRSI {
		var gain, loss float64
		for i := 1; i <= lookbackRSI; i++ {
			d := closes[i] - closes[i-1]
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		avgGain := gain / float64(lookbackRSI)
		avgLoss := loss / float64(lookbackRSI)
		out[lookbackRSI]["rsi14"] = rsiFrom(avgGain, avgLoss)

		alpha := 1.0 / float64(lookbackRSI)
		for i := lookbackRSI + 1; i < n; i++ {
			d := closes[i] - closes[i-1]
			g, l := 0.0, 0.0
			if d > 0 {
				g = d
			} else {
				l = -d
			}
			avgGain = avgGain*(1-alpha) + g*alpha
			avgLoss = avgLoss*(1-alpha) + l*alpha
			out[i]["rsi14"] = rsiFrom(avgGain, avgLoss)
		}
	}

	// 52-week high/low distances over a window of up to lookback52Wk
	// closes ending at i; requires at least min52WkPrior prior days
	for i := min52WkPrior; i < n; i++ {
		lo := i - lookback52Wk + 1
		if lo < 0 {
			lo = 0
		}
		hi52, lo52 := closes[lo], closes[lo]
		for j := lo + 1; j <= i; j++ {
			if closes[j] > hi52 {
				hi52 = closes[j]
			}
			if closes[j] < lo52 {
				lo52 = closes[j]
			}
		}
		out[i]["hi52_dist"] = closes[i]/hi52 - 1
		out[i]["lo52_dist"] = closes[i]/lo52 - 1
	}

	return out
}

// rsiFrom converts smoothed average gain/loss into an RSI value
func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// sampleStd is the n-1 denominator standard deviation
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}

	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs) - 1)

	return math.Sqrt(variance)
}

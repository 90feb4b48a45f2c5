package sentiment

import (
	"math"
	"strings"
	"unicode"
)

// lexicon maps sentiment-bearing words to valence in roughly [-3, 3],
// a trimmed finance-leaning subset of the usual social-media lexicons
var lexicon = map[string]float64{
	// positive
	"good": 1.9, "great": 3.1, "gain": 1.6, "gains": 1.6, "bull": 1.5,
	"bullish": 2.3, "buy": 1.2, "beat": 1.4, "beats": 1.4, "strong": 1.8,
	"up": 1.0, "upside": 1.7, "win": 2.4, "winner": 2.6, "profit": 2.0,
	"profits": 2.0, "rally": 1.8, "soar": 2.2, "soars": 2.2, "surge": 1.9,
	"growth": 1.6, "record": 1.3, "moon": 2.0, "rocket": 1.9, "love": 3.2,
	"best": 3.2, "upgrade": 1.7, "upgraded": 1.7, "outperform": 1.9,
	"breakout": 1.5, "calls": 0.8, "green": 1.1, "higher": 1.0,

	// negative
	"bad": -2.5, "loss": -1.7, "losses": -1.7, "bear": -1.5,
	"bearish": -2.3, "sell": -1.2, "miss": -1.4, "missed": -1.5,
	"weak": -1.8, "down": -1.0, "downside": -1.7, "crash": -2.6,
	"crashes": -2.6, "drop": -1.4, "drops": -1.4, "plunge": -2.2,
	"plunges": -2.2, "fall": -1.3, "falls": -1.3, "fear": -2.0,
	"risk": -1.1, "risky": -1.5, "fraud": -2.9, "bankrupt": -3.0,
	"bankruptcy": -3.0, "lawsuit": -1.8, "debt": -1.2, "short": -0.8,
	"puts": -0.8, "red": -1.1, "lower": -1.0, "downgrade": -1.7,
	"downgraded": -1.7, "underperform": -1.9, "dump": -1.8, "bag": -1.3,
	"bagholder": -2.2, "worst": -3.1, "terrible": -2.7, "hate": -2.7,
	"warning": -1.6, "cut": -1.1, "cuts": -1.1, "layoffs": -2.0,
}

// negations flip the valence of the following sentiment word
var negations = map[string]bool{
	"not": true, "no": true, "never": true, "neither": true,
	"nobody": true, "none": true, "isnt": true, "isn't": true,
	"wasnt": true, "wasn't": true, "dont": true, "don't": true,
	"doesnt": true, "doesn't": true, "didnt": true, "didn't": true,
	"wont": true, "won't": true, "cant": true, "can't": true,
	"without": true, "aint": true, "ain't": true,
}

// boosters scale the valence of the following sentiment word
var boosters = map[string]float64{
	"very": 0.293, "really": 0.293, "extremely": 0.293, "absolutely": 0.293,
	"super": 0.293, "huge": 0.293, "massively": 0.293, "totally": 0.293,
	"slightly": -0.293, "somewhat": -0.293, "barely": -0.293, "kinda": -0.293,
}

// alpha normalizes the summed valence into (-1, 1); same constant the
// common compound formulations use
const alpha = 15.0

// negationScale dampens a flipped word rather than fully inverting it
const negationScale = -0.74

// Compound scores a text in [-1, 1]: negative below zero, positive
// above, near zero for neutral text. The score is a normalized sum of
// lexicon valences with one-token negation and booster handling, which
// tracks the reference compound scorer closely enough for ranking buzz.
func Compound(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	sum := 0.0
	for i, tok := range tokens {
		valence, ok := lexicon[tok]
		if !ok {
			continue
		}

		if i > 0 {
			prev := tokens[i-1]
			if negations[prev] {
				valence *= negationScale
			} else if b, ok := boosters[prev]; ok {
				if valence > 0 {
					valence += b
				} else {
					valence -= b
				}
			}
		}

		sum += valence
	}

	return normalize(sum)
}

// Label buckets a compound score the way the reports do
func Label(score float64) string {
	switch {
	case score >= 0.05:
		return "positive"
	case score <= -0.05:
		return "negative"
	default:
		return "neutral"
	}
}

// normalize maps an unbounded valence sum into (-1, 1)
func normalize(sum float64) float64 {
	norm := sum / math.Sqrt(sum*sum+alpha)
	if norm > 1 {
		return 1
	}
	if norm < -1 {
		return -1
	}
	return norm
}

// tokenize lowercases and splits on non-word runs, keeping apostrophes
// so contractions match the negation table
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

package feeds

import (
	"regexp"
	"sort"
	"strings"
)

// cashtagPattern matches $-prefixed or bare uppercase ticker-shaped
// tokens inside a text
var cashtagPattern = regexp.MustCompile(`\$?[A-Z]{1,5}\b`)

// commonFalses are uppercase words that look like tickers but almost
// never are when written without a $ prefix
var commonFalses = map[string]bool{
	"A": true, "I": true, "AM": true, "ALL": true, "FOR": true,
	"EVER": true, "DD": true, "YOLO": true, "CEO": true, "CFO": true,
	"OPEN": true, "AI": true, "USA": true, "IPO": true, "EPS": true,
	"HOME": true,
}

// ExtractTickers returns the distinct ticker symbols mentioned in a
// text, sorted. A $-prefixed mention always counts; a bare uppercase
// word counts only when it is not a common English word and not glued
// to a longer uppercase run.
func ExtractTickers(text string) []string {
	seen := make(map[string]bool)

	for _, loc := range cashtagPattern.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		cashtag := strings.HasPrefix(match, "$")
		symbol := strings.TrimPrefix(match, "$")

		// reject matches embedded in a longer uppercase or numeric run,
		// e.g. the "COVID" inside "COVID19" or serial numbers
		if !cashtag && loc[0] > 0 && isWordChar(text[loc[0]-1]) {
			continue
		}
		if loc[1] < len(text) && isDigit(text[loc[1]]) {
			continue
		}

		if !cashtag && commonFalses[symbol] {
			continue
		}
		seen[symbol] = true
	}

	tickers := make([]string, 0, len(seen))
	for t := range seen {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

func isWordChar(b byte) bool {
	return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || isDigit(b) || b == '$'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

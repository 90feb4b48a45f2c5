package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// parseRange reads optional from/to query parameters, falling back to
// the given defaults
func parseRange(r *http.Request, defaultFrom, defaultTo time.Time) (time.Time, time.Time, error) {
	return parseRequestRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"), defaultFrom, defaultTo)
}

func parseRequestRange(fromRaw, toRaw string, defaultFrom, defaultTo time.Time) (time.Time, time.Time, error) {
	from, to := defaultFrom, defaultTo
	var err error

	if fromRaw != "" {
		from, err = time.Parse(contracts.DateFormat, fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'from' date (expected YYYY-MM-DD)")
		}
	}
	if toRaw != "" {
		to, err = time.Parse(contracts.DateFormat, toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid 'to' date (expected YYYY-MM-DD)")
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("'to' date precedes 'from'")
	}

	return from, to, nil
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/internal/nowcast"
	"github.com/ejames/nowcast/internal/store"
	"github.com/ejames/nowcast/pkg/logger"
	"github.com/ejames/nowcast/pkg/redis"
)

// defaultWindowDays is the feature window for a run triggered without
// an explicit date range
const defaultWindowDays = 365

const metricsCacheKey = "metrics:latest"
const metricsCacheTTL = 5 * time.Minute

// MetricsStore reads persisted run metrics
type MetricsStore interface {
	Latest(ctx context.Context) ([]store.StoredMetrics, error)
	History(ctx context.Context, n int) ([]store.StoredMetrics, error)
}

// AttentionStore reads persisted attention records
type AttentionStore interface {
	GetByDateRange(ctx context.Context, from, to time.Time) ([]contracts.AttentionRecord, error)
}

// RunService executes a pipeline run over a date window
type RunService interface {
	RunWindow(ctx context.Context, from, to time.Time) (*nowcast.RunResult, error)
	FeatureWindow(ctx context.Context, from, to time.Time) (*contracts.FeatureTable, error)
}

// Broadcaster pushes completed run metrics to live subscribers
type Broadcaster interface {
	BroadcastMetrics(metrics []contracts.RunMetrics)
}

// NowcastHandler serves metrics queries and the run trigger
type NowcastHandler struct {
	metrics     MetricsStore
	attention   AttentionStore
	runService  RunService
	broadcaster Broadcaster
	cache       *redis.Cache
	logger      *logger.Logger
}

// NewNowcastHandler creates a nowcast handler
func NewNowcastHandler(metrics MetricsStore, attention AttentionStore, runService RunService, broadcaster Broadcaster, cache *redis.Cache, log *logger.Logger) *NowcastHandler {
	return &NowcastHandler{
		metrics:     metrics,
		attention:   attention,
		runService:  runService,
		broadcaster: broadcaster,
		cache:       cache,
		logger:      log,
	}
}

// GetLatestMetrics returns the metrics of the most recent run
// GET /api/metrics/latest
func (h *NowcastHandler) GetLatestMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cached []MetricsPayload
	if hit, err := h.cache.Get(ctx, metricsCacheKey, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	rows, err := h.metrics.Latest(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest metrics")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}
	if len(rows) == 0 {
		respondError(w, http.StatusNotFound, "No runs recorded yet")
		return
	}

	payload := make([]MetricsPayload, len(rows))
	for i, row := range rows {
		payload[i] = NewMetricsPayload(row.RunMetrics, row.RunAt)
	}

	if err := h.cache.Set(ctx, metricsCacheKey, payload, metricsCacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache latest metrics")
	}

	respondJSON(w, http.StatusOK, payload)
}

// GetMetricsHistory returns metrics for the last n runs (default 30)
// GET /api/metrics/history?runs=N
func (h *NowcastHandler) GetMetricsHistory(w http.ResponseWriter, r *http.Request) {
	runs := 30
	if raw := r.URL.Query().Get("runs"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			respondError(w, http.StatusBadRequest, "Invalid 'runs' parameter (1-1000)")
			return
		}
		runs = n
	}

	rows, err := h.metrics.History(r.Context(), runs)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load metrics history")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics history")
		return
	}

	payload := make([]MetricsPayload, len(rows))
	for i, row := range rows {
		payload[i] = NewMetricsPayload(row.RunMetrics, row.RunAt)
	}
	respondJSON(w, http.StatusOK, payload)
}

// GetAttention returns attention records within a date range
// GET /api/attention?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *NowcastHandler) GetAttention(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseRange(r, time.Now().UTC().AddDate(0, 0, -7), time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.attention.GetByDateRange(r.Context(), from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load attention records")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve attention records")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"from":    from.Format(contracts.DateFormat),
		"to":      to.Format(contracts.DateFormat),
		"count":   len(recs),
		"records": recs,
	})
}

// GetFeatures returns the finalized feature table for a date range
// GET /api/features?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *NowcastHandler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from, to, err := parseRange(r, now.AddDate(0, 0, -defaultWindowDays), now)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	table, err := h.runService.FeatureWindow(r.Context(), from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to build feature table")
		if errors.Is(err, contracts.ErrInsufficientData) {
			respondError(w, http.StatusUnprocessableEntity, "Not enough data for the requested window")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to build feature table")
		return
	}

	respondJSON(w, http.StatusOK, table)
}

// RunRequest is the body of a run trigger. Both dates are optional.
type RunRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RunResponse summarizes a completed run
type RunResponse struct {
	Status           string           `json:"status"`
	Metrics          []MetricsPayload `json:"metrics"`
	Rows             int              `json:"rows"`
	NTrain           int              `json:"n_train"`
	NHoldout         int              `json:"n_holdout"`
	DroppedAttention int              `json:"dropped_attention"`
	DroppedPrices    int              `json:"dropped_prices"`
	Duration         string           `json:"duration"`
}

// Run triggers a pipeline run over stored data
// POST /api/run
func (h *NowcastHandler) Run(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	now := time.Now().UTC()
	from, to, err := parseRequestRange(req.From, req.To, now.AddDate(0, 0, -defaultWindowDays), now)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"from": from.Format(contracts.DateFormat),
		"to":   to.Format(contracts.DateFormat),
	}).Info("Run triggered via API")

	result, err := h.runService.RunWindow(ctx, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Run failed")
		switch {
		case errors.Is(err, contracts.ErrInsufficientData):
			respondError(w, http.StatusUnprocessableEntity, "Not enough data for the requested window")
		case errors.Is(err, contracts.ErrTimeout):
			respondError(w, http.StatusGatewayTimeout, "Run exceeded its time budget")
		case errors.Is(err, contracts.ErrTraining):
			respondError(w, http.StatusUnprocessableEntity, "Training failed: labels are single-class")
		default:
			respondError(w, http.StatusInternalServerError, "Run failed")
		}
		return
	}

	if err := h.cache.Delete(ctx, metricsCacheKey); err != nil {
		h.logger.WithError(err).Warn("Failed to invalidate metrics cache")
	}
	if h.broadcaster != nil {
		h.broadcaster.BroadcastMetrics(result.Metrics)
	}

	respondJSON(w, http.StatusOK, RunResponse{
		Status:           "success",
		Metrics:          NewMetricsPayloads(result.Metrics, now),
		Rows:             result.Table.Len(),
		NTrain:           result.NTrain,
		NHoldout:         result.NHoldout,
		DroppedAttention: result.DroppedAttention,
		DroppedPrices:    result.DroppedPrices,
		Duration:         result.Duration.String(),
	})
}

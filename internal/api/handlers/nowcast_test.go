package handlers

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/internal/nowcast"
	"github.com/ejames/nowcast/internal/store"
	"github.com/ejames/nowcast/pkg/config"
	"github.com/ejames/nowcast/pkg/logger"
	"github.com/ejames/nowcast/pkg/redis"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, "error")
}

func testCache(t *testing.T) *redis.Cache {
	t.Helper()
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)
	return redis.NewCache(client, "test")
}

type fakeMetricsStore struct {
	rows []store.StoredMetrics
	err  error
}

func (f *fakeMetricsStore) Latest(ctx context.Context) ([]store.StoredMetrics, error) {
	return f.rows, f.err
}

func (f *fakeMetricsStore) History(ctx context.Context, n int) ([]store.StoredMetrics, error) {
	if n < len(f.rows) {
		return f.rows[:n], f.err
	}
	return f.rows, f.err
}

type fakeAttentionStore struct {
	recs []contracts.AttentionRecord
}

func (f *fakeAttentionStore) GetByDateRange(ctx context.Context, from, to time.Time) ([]contracts.AttentionRecord, error) {
	return f.recs, nil
}

type fakeRunService struct {
	result *nowcast.RunResult
	table  *contracts.FeatureTable
	err    error
	calls  int
}

func (f *fakeRunService) RunWindow(ctx context.Context, from, to time.Time) (*nowcast.RunResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeRunService) FeatureWindow(ctx context.Context, from, to time.Time) (*contracts.FeatureTable, error) {
	return f.table, f.err
}

type fakeBroadcaster struct {
	pushed [][]contracts.RunMetrics
}

func (f *fakeBroadcaster) BroadcastMetrics(m []contracts.RunMetrics) {
	f.pushed = append(f.pushed, m)
}

func storedRow(model string, accuracy float64) store.StoredMetrics {
	return store.StoredMetrics{
		ID:    1,
		RunAt: time.Date(2025, 1, 6, 22, 0, 0, 0, time.UTC),
		RunMetrics: contracts.RunMetrics{
			ModelName:              model,
			HoldoutAccuracy:        accuracy,
			BaselineAccuracy:       contracts.BaselineAccuracy,
			DecileSpreadDaily:      0.004,
			DecileSpreadAnnualized: 1.73,
			NTrain:                 340,
			NHoldout:               50,
		},
	}
}

func newTestHandler(metrics *fakeMetricsStore, run *fakeRunService, bc *fakeBroadcaster, t *testing.T) *NowcastHandler {
	return NewNowcastHandler(metrics, &fakeAttentionStore{}, run, bc, testCache(t), testLogger())
}

func TestGetLatestMetrics(t *testing.T) {
	metrics := &fakeMetricsStore{rows: []store.StoredMetrics{
		storedRow("forest", 0.54),
		storedRow("linear", 0.52),
	}}
	h := newTestHandler(metrics, &fakeRunService{}, &fakeBroadcaster{}, t)

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/latest", nil)
	rec := httptest.NewRecorder()
	h.GetLatestMetrics(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload []MetricsPayload
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Len(t, payload, 2)
	assert.Equal(t, "forest", payload[0].ModelName)
	require.NotNil(t, payload[0].HoldoutAccuracy)
	assert.InDelta(t, 0.54, *payload[0].HoldoutAccuracy, 1e-12)
	assert.Equal(t, "2025-01-06T22:00:00Z", payload[0].RunAt)
}

func TestGetLatestMetricsEmpty(t *testing.T) {
	h := newTestHandler(&fakeMetricsStore{}, &fakeRunService{}, &fakeBroadcaster{}, t)

	rec := httptest.NewRecorder()
	h.GetLatestMetrics(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/latest", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLatestMetricsNaNSerializesAsNull(t *testing.T) {
	row := storedRow("linear", math.NaN())
	row.DecileSpreadDaily = math.NaN()
	row.DecileSpreadAnnualized = math.NaN()
	h := newTestHandler(&fakeMetricsStore{rows: []store.StoredMetrics{row}}, &fakeRunService{}, &fakeBroadcaster{}, t)

	rec := httptest.NewRecorder()
	h.GetLatestMetrics(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/latest", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"holdout_accuracy":null`)
	assert.Contains(t, rec.Body.String(), `"decile_spread_daily":null`)
}

func TestGetMetricsHistoryValidatesRuns(t *testing.T) {
	h := newTestHandler(&fakeMetricsStore{}, &fakeRunService{}, &fakeBroadcaster{}, t)

	rec := httptest.NewRecorder()
	h.GetMetricsHistory(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/history?runs=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.GetMetricsHistory(rec, httptest.NewRequest(http.MethodGet, "/api/metrics/history?runs=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunTriggersServiceAndBroadcasts(t *testing.T) {
	metricsOut := []contracts.RunMetrics{
		{ModelName: "linear", HoldoutAccuracy: 0.53, BaselineAccuracy: 0.5, NTrain: 340, NHoldout: 50},
	}
	run := &fakeRunService{result: &nowcast.RunResult{
		Table:    &contracts.FeatureTable{SchemaVersion: contracts.SchemaVersion},
		Metrics:  metricsOut,
		NTrain:   340,
		NHoldout: 50,
		Duration: 3 * time.Second,
	}}
	bc := &fakeBroadcaster{}
	h := newTestHandler(&fakeMetricsStore{}, run, bc, t)

	req := httptest.NewRequest(http.MethodPost, "/api/run",
		strings.NewReader(`{"from":"2024-01-01","to":"2025-01-06"}`))
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, run.calls)
	require.Len(t, bc.pushed, 1, "completed run is pushed to websocket clients")

	var resp RunResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 340, resp.NTrain)
	require.Len(t, resp.Metrics, 1)
	assert.Equal(t, "linear", resp.Metrics[0].ModelName)
}

func TestRunErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"insufficient data", contracts.ErrInsufficientData, http.StatusUnprocessableEntity},
		{"timeout", contracts.ErrTimeout, http.StatusGatewayTimeout},
		{"training", contracts.ErrTraining, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeMetricsStore{}, &fakeRunService{err: tt.err}, &fakeBroadcaster{}, t)

			rec := httptest.NewRecorder()
			h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGetFeaturesReturnsTable(t *testing.T) {
	table := &contracts.FeatureTable{
		SchemaVersion: contracts.SchemaVersion,
		Columns:       contracts.FeatureColumns,
		Rows: []contracts.FeatureRow{
			{
				Date:   time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				Ticker: "AAPL",
				Features: map[string]contracts.FeatureValue{
					"r1":       contracts.Present(0.01),
					"mentions": contracts.Absent(),
				},
				Label: contracts.Label{Value: 1, Present: true},
			},
		},
	}
	h := newTestHandler(&fakeMetricsStore{}, &fakeRunService{table: table}, &fakeBroadcaster{}, t)

	req := httptest.NewRequest(http.MethodGet, "/api/features?from=2025-01-01&to=2025-01-10", nil)
	rec := httptest.NewRecorder()
	h.GetFeatures(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got contracts.FeatureTable
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, contracts.SchemaVersion, got.SchemaVersion)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "AAPL", got.Rows[0].Ticker)
	assert.False(t, got.Rows[0].Features["mentions"].Present)
}

func TestGetFeaturesInsufficientData(t *testing.T) {
	h := newTestHandler(&fakeMetricsStore{}, &fakeRunService{err: contracts.ErrInsufficientData}, &fakeBroadcaster{}, t)

	rec := httptest.NewRecorder()
	h.GetFeatures(rec, httptest.NewRequest(http.MethodGet, "/api/features", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRunRejectsBadDates(t *testing.T) {
	h := newTestHandler(&fakeMetricsStore{}, &fakeRunService{}, &fakeBroadcaster{}, t)

	req := httptest.NewRequest(http.MethodPost, "/api/run",
		strings.NewReader(`{"from":"2025-01-06","to":"2024-01-01"}`))
	rec := httptest.NewRecorder()
	h.Run(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

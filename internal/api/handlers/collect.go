package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/internal/ingest/feeds"
	"github.com/ejames/nowcast/internal/ingest/prices"
	"github.com/ejames/nowcast/internal/universe"
	"github.com/ejames/nowcast/pkg/config"
	"github.com/ejames/nowcast/pkg/logger"
)

// BuzzCollector polls feeds into attention records
type BuzzCollector interface {
	CollectAll(ctx context.Context, feedURLs []string, u *universe.Universe, asOf time.Time, cfg feeds.Config) ([]contracts.AttentionRecord, []feeds.FetchResult, error)
}

// PriceCollector fetches daily bar history for a ticker set
type PriceCollector interface {
	FetchAll(ctx context.Context, tickers []string, from, to time.Time, cfg prices.Config) ([]contracts.PriceRecord, []prices.FetchResult, error)
}

// AttentionWriter persists attention records
type AttentionWriter interface {
	SaveBatch(ctx context.Context, recs []contracts.AttentionRecord) error
}

// PriceWriter persists daily bars
type PriceWriter interface {
	SaveBatch(ctx context.Context, recs []contracts.PriceRecord) error
}

// UniverseLoader resolves the ticker universe
type UniverseLoader interface {
	Load(path string) (*universe.Universe, error)
}

// CollectHandler triggers buzz and price collection
type CollectHandler struct {
	cfg            *config.Config
	buzz           BuzzCollector
	prices         PriceCollector
	attentionStore AttentionWriter
	priceStore     PriceWriter
	universes      UniverseLoader
	logger         *logger.Logger
}

// NewCollectHandler creates a collect handler
func NewCollectHandler(cfg *config.Config, buzz BuzzCollector, priceCol PriceCollector, attentionStore AttentionWriter, priceStore PriceWriter, universes UniverseLoader, log *logger.Logger) *CollectHandler {
	return &CollectHandler{
		cfg:            cfg,
		buzz:           buzz,
		prices:         priceCol,
		attentionStore: attentionStore,
		priceStore:     priceStore,
		universes:      universes,
		logger:         log,
	}
}

// CollectRequest selects what to collect
type CollectRequest struct {
	Type string `json:"type"` // "all", "buzz", "prices"
	From string `json:"from"` // optional, prices only (YYYY-MM-DD)
	To   string `json:"to"`   // optional, prices only (YYYY-MM-DD)
}

// CollectResponse summarizes a collection
type CollectResponse struct {
	Status  string      `json:"status"`
	Type    string      `json:"type"`
	Records int         `json:"records"`
	Results interface{} `json:"results,omitempty"`
}

// Collect triggers data collection
// POST /api/collect
func (h *CollectHandler) Collect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CollectRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.Type == "" {
		req.Type = "all"
	}

	now := time.Now().UTC()
	from, to, err := parseRequestRange(req.From, req.To, now.AddDate(0, 0, -30), now)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.universes.Load(h.cfg.Universe.CSVPath)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load universe")
		respondError(w, http.StatusInternalServerError, "Failed to load universe")
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"type":    req.Type,
		"tickers": len(u.Tickers),
	}).Info("Collection triggered")

	switch req.Type {
	case "buzz":
		records, results, err := h.collectBuzz(ctx, u, now)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to collect buzz")
			return
		}
		respondJSON(w, http.StatusOK, CollectResponse{Status: "success", Type: req.Type, Records: records, Results: results})

	case "prices":
		records, results, err := h.collectPrices(ctx, u, from, to)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to collect prices")
			return
		}
		respondJSON(w, http.StatusOK, CollectResponse{Status: "success", Type: req.Type, Records: records, Results: results})

	case "all":
		buzzCount, _, buzzErr := h.collectBuzz(ctx, u, now)
		priceCount, _, priceErr := h.collectPrices(ctx, u, from, to)
		if buzzErr != nil && priceErr != nil {
			respondError(w, http.StatusInternalServerError, "Failed to collect data")
			return
		}
		respondJSON(w, http.StatusOK, CollectResponse{Status: "success", Type: req.Type, Records: buzzCount + priceCount})

	default:
		respondError(w, http.StatusBadRequest, "Invalid collection type (valid: all, buzz, prices)")
	}
}

func (h *CollectHandler) collectBuzz(ctx context.Context, u *universe.Universe, asOf time.Time) (int, []feeds.FetchResult, error) {
	records, results, err := h.buzz.CollectAll(ctx, h.cfg.Feeds.URLs, u, asOf, feeds.Config{Workers: h.cfg.Nowcast.Workers})
	if err != nil {
		h.logger.WithError(err).Error("Buzz collection failed")
		return 0, nil, err
	}
	if err := h.attentionStore.SaveBatch(ctx, records); err != nil {
		h.logger.WithError(err).Error("Failed to save attention records")
		return 0, nil, err
	}
	return len(records), results, nil
}

func (h *CollectHandler) collectPrices(ctx context.Context, u *universe.Universe, from, to time.Time) (int, []prices.FetchResult, error) {
	records, results, err := h.prices.FetchAll(ctx, u.Tickers, from, to, prices.Config{Workers: h.cfg.Prices.Workers})
	if err != nil {
		h.logger.WithError(err).Error("Price collection failed")
		return 0, nil, err
	}
	if err := h.priceStore.SaveBatch(ctx, records); err != nil {
		h.logger.WithError(err).Error("Failed to save price records")
		return 0, nil, err
	}
	return len(records), results, nil
}

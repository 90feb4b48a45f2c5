package nowcast

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/pkg/logger"
)

// Builder merges per-source canonical records into a feature table:
// one row per observed (date, ticker) key within the requested range,
// outer-join semantics, missing source contributions marked absent.
// Derived features come only from price history at or before each
// row's date.
type Builder struct {
	workers int
	logger  *logger.Logger
}

// NewBuilder creates a new feature table builder. workers bounds the
// per-ticker feature computation pool.
func NewBuilder(workers int, log *logger.Logger) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{
		workers: workers,
		logger:  log.Component("nowcast.table"),
	}
}

// BuildInput carries the canonical per-source views for one build
type BuildInput struct {
	Prices    map[string][]contracts.PriceRecord // per ticker, ascending
	Attention map[contracts.Key]map[string]float64
	From, To  time.Time
}

// tickerRows is one worker's output for a single ticker
type tickerRows struct {
	ticker string
	rows   []contracts.FeatureRow
}

// Build produces the feature table for the input's date range. Ticker
// computations run on an unordered worker pool (each touches disjoint
// state); the merge is keyed by (date, ticker) so the result is
// deterministic regardless of completion order.
func (b *Builder) Build(ctx context.Context, in BuildInput) (*contracts.FeatureTable, error) {
	tickers := make([]string, 0, len(in.Prices))
	for t := range in.Prices {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	b.logger.WithFields(map[string]interface{}{
		"tickers":   len(tickers),
		"attention": len(in.Attention),
		"from":      in.From.Format(contracts.DateFormat),
		"to":        in.To.Format(contracts.DateFormat),
		"workers":   b.workers,
	}).Info("Building feature table")

	tickerCh := make(chan string, len(tickers))
	resultCh := make(chan tickerRows, len(tickers))

	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range tickerCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				resultCh <- tickerRows{
					ticker: ticker,
					rows:   b.buildTickerRows(ticker, in),
				}
			}
		}()
	}

	for _, t := range tickers {
		tickerCh <- t
	}
	close(tickerCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// Keyed merge enforces the unique (date, ticker) invariant
	byKey := make(map[contracts.Key]contracts.FeatureRow)
	for res := range resultCh {
		for _, row := range res.rows {
			byKey[row.Key()] = row
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Attention observed for keys without any price row still gets a
	// row: absent price features, present attention features
	for key, vec := range in.Attention {
		date := key.Time()
		if date.Before(in.From) || date.After(in.To) {
			continue
		}
		if _, ok := byKey[key]; ok {
			continue
		}
		byKey[key] = contracts.FeatureRow{
			Date:     date,
			Ticker:   key.Ticker,
			Features: featureMap(nil, vec),
		}
	}

	rows := make([]contracts.FeatureRow, 0, len(byKey))
	for _, row := range byKey {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Key().Less(rows[j].Key())
	})

	b.logger.WithFields(map[string]interface{}{
		"rows": len(rows),
	}).Info("Feature table built")

	return &contracts.FeatureTable{
		SchemaVersion: contracts.SchemaVersion,
		Columns:       append([]string(nil), contracts.FeatureColumns...),
		Rows:          rows,
	}, nil
}

// buildTickerRows computes one ticker's rows for the requested range
func (b *Builder) buildTickerRows(ticker string, in BuildInput) []contracts.FeatureRow {
	history := in.Prices[ticker]
	derived := computeDerived(history)

	rows := make([]contracts.FeatureRow, 0, len(history))
	for i, rec := range history {
		if rec.Date.Before(in.From) || rec.Date.After(in.To) {
			continue
		}

		// Upstream-precomputed indicators pass through only for
		// schema columns the derived computation did not fill
		priceVec := derived[i]
		for name, v := range rec.Indicators {
			if _, ok := priceVec[name]; !ok && schemaHas(name) {
				priceVec[name] = v
			}
		}

		rows = append(rows, contracts.FeatureRow{
			Date:     rec.Date,
			Ticker:   ticker,
			Features: featureMap(priceVec, in.Attention[contracts.NewKey(rec.Date, ticker)]),
		})
	}
	return rows
}

// featureMap assembles the full column schema from partial source
// vectors, marking every column neither source supplied as absent
func featureMap(priceVec, attentionVec map[string]float64) map[string]contracts.FeatureValue {
	features := make(map[string]contracts.FeatureValue, len(contracts.FeatureColumns))
	for _, col := range contracts.FeatureColumns {
		if v, ok := priceVec[col]; ok {
			features[col] = contracts.Present(v)
			continue
		}
		if v, ok := attentionVec[col]; ok {
			features[col] = contracts.Present(v)
			continue
		}
		features[col] = contracts.Absent()
	}
	return features
}

func schemaHas(name string) bool {
	for _, col := range contracts.FeatureColumns {
		if col == name {
			return true
		}
	}
	return false
}

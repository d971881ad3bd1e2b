// Package fetch assembles KPI datasets from a provider, with an optional
// persistent cache in front of the API.
package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/kpi-screener/internal/model"
	"github.com/sells-group/kpi-screener/internal/store"
)

// Provider is a KPI data source. Implementations wrap one vendor API.
type Provider interface {
	Name() string
	Instruments(ctx context.Context) ([]model.Instrument, error)
	KPIs(ctx context.Context) ([]model.KPIMeta, error)
	Series(ctx context.Context, stockID int, kpi string, freq model.Frequency) (model.Series, error)
}

// Universe fetches are capped to keep a screening run inside API quota.
const maxUniverse = 1000

const (
	defaultParallelism = 10
	defaultTTL         = 24 * time.Hour
)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithStore enables the persistent cache with the given TTL.
func WithStore(s store.Store, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.store = s
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithParallelism sets the number of concurrent provider calls.
func WithParallelism(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.parallelism = n
		}
	}
}

// Fetcher loads series for many stock/KPI pairs concurrently.
type Fetcher struct {
	provider    Provider
	store       store.Store
	ttl         time.Duration
	parallelism int
}

// New creates a Fetcher for the given provider.
func New(p Provider, opts ...Option) *Fetcher {
	f := &Fetcher{
		provider:    p,
		ttl:         defaultTTL,
		parallelism: defaultParallelism,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Instruments returns the provider's instrument list, served from the cache
// when fresh.
func (f *Fetcher) Instruments(ctx context.Context) ([]model.Instrument, error) {
	if f.store != nil {
		cached, ok, err := f.store.GetInstruments(ctx, f.provider.Name())
		if err != nil {
			zap.L().Warn("instrument cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	instruments, err := f.provider.Instruments(ctx)
	if err != nil {
		return nil, err
	}

	if f.store != nil {
		if err := f.store.PutInstruments(ctx, f.provider.Name(), instruments, f.ttl); err != nil {
			zap.L().Warn("instrument cache write failed", zap.Error(err))
		}
	}
	return instruments, nil
}

// Dataset fetches series for every stock/KPI combination. The universe is
// capped at maxUniverse stocks. Individual fetch failures are logged and the
// pair is treated as having no data; the whole fetch fails only on context
// cancellation.
func (f *Fetcher) Dataset(ctx context.Context, stockIDs []int, kpis []string, freqFor func(kpi string) model.Frequency) (model.Dataset, error) {
	if len(stockIDs) > maxUniverse {
		zap.L().Warn("universe capped",
			zap.Int("requested", len(stockIDs)),
			zap.Int("cap", maxUniverse),
		)
		stockIDs = stockIDs[:maxUniverse]
	}

	dataset := make(model.Dataset, len(kpis))
	var mu sync.Mutex
	var fetched, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallelism)

	for _, kpi := range kpis {
		freq := freqFor(kpi)
		for _, stockID := range stockIDs {
			// Stop issuing work once the run is cancelled.
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				series, err := f.fetchOne(gctx, stockID, kpi, freq)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					failed.Add(1)
					zap.L().Error("series fetch failed",
						zap.String("kpi", kpi),
						zap.Int("stock_id", stockID),
						zap.Error(err),
					)
					return nil
				}
				fetched.Add(1)

				if len(series) == 0 {
					return nil
				}
				mu.Lock()
				for _, obs := range series {
					dataset.Add(kpi, obs)
				}
				mu.Unlock()
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dataset.SortAll()

	zap.L().Info("dataset assembled",
		zap.String("provider", f.provider.Name()),
		zap.Int("stocks", len(stockIDs)),
		zap.Int("kpis", len(kpis)),
		zap.Int64("fetched", fetched.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return dataset, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, stockID int, kpi string, freq model.Frequency) (model.Series, error) {
	key := store.SeriesKey{Provider: f.provider.Name(), KPI: kpi, Frequency: freq, StockID: stockID}

	if f.store != nil {
		cached, ok, err := f.store.GetSeries(ctx, key)
		if err != nil {
			zap.L().Warn("series cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	series, err := f.provider.Series(ctx, stockID, kpi, freq)
	if err != nil {
		return nil, err
	}

	if f.store != nil && len(series) > 0 {
		if err := f.store.PutSeries(ctx, key, series, f.ttl); err != nil {
			zap.L().Warn("series cache write failed", zap.Error(err))
		}
	}
	return series, nil
}

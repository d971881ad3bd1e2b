// Package store caches provider data (KPI series, instrument metadata)
// between screening runs behind a driver-selectable interface. It is purely
// a fetch cache with TTL expiry; filter results are never persisted.
package store

import (
	"context"
	"time"

	"github.com/sells-group/kpi-screener/internal/model"
)

// SeriesKey identifies one cached series.
type SeriesKey struct {
	Provider  string
	KPI       string
	Frequency model.Frequency
	StockID   int
}

// Store is the persistence interface for the fetch cache.
type Store interface {
	// Series cache. The bool reports a fresh (unexpired) hit.
	GetSeries(ctx context.Context, key SeriesKey) (model.Series, bool, error)
	PutSeries(ctx context.Context, key SeriesKey, series model.Series, ttl time.Duration) error

	// Instrument metadata cache, one entry per provider.
	GetInstruments(ctx context.Context, provider string) ([]model.Instrument, bool, error)
	PutInstruments(ctx context.Context, provider string, instruments []model.Instrument, ttl time.Duration) error

	// DeleteExpired purges expired rows and reports how many were removed.
	DeleteExpired(ctx context.Context) (int, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

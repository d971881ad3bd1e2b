package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/kpi-screener/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Tests substitute a mock.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the given DSN and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS series_cache (
	id         UUID PRIMARY KEY,
	provider   TEXT NOT NULL,
	kpi        TEXT NOT NULL,
	frequency  TEXT NOT NULL,
	stock_id   BIGINT NOT NULL,
	points     JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL,
	UNIQUE (provider, kpi, frequency, stock_id)
);

CREATE TABLE IF NOT EXISTS instrument_cache (
	provider   TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_series_cache_expires_at ON series_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetSeries(ctx context.Context, key SeriesKey) (model.Series, bool, error) {
	var points []byte
	err := s.pool.QueryRow(ctx,
		`SELECT points FROM series_cache
		 WHERE provider = $1 AND kpi = $2 AND frequency = $3 AND stock_id = $4 AND expires_at > now()`,
		key.Provider, key.KPI, string(key.Frequency), key.StockID,
	).Scan(&points)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get series")
	}

	var series model.Series
	if err := json.Unmarshal(points, &series); err != nil {
		return nil, false, eris.Wrap(err, "postgres: unmarshal series")
	}
	return series, true, nil
}

func (s *PostgresStore) PutSeries(ctx context.Context, key SeriesKey, series model.Series, ttl time.Duration) error {
	points, err := json.Marshal(series)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal series")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO series_cache (id, provider, kpi, frequency, stock_id, points, fetched_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now() + $7)
		 ON CONFLICT (provider, kpi, frequency, stock_id)
		 DO UPDATE SET points = excluded.points, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		uuid.New(), key.Provider, key.KPI, string(key.Frequency), key.StockID, points, ttl,
	)
	return eris.Wrap(err, "postgres: put series")
}

func (s *PostgresStore) GetInstruments(ctx context.Context, provider string) ([]model.Instrument, bool, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM instrument_cache WHERE provider = $1 AND expires_at > now()`,
		provider,
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get instruments")
	}

	var instruments []model.Instrument
	if err := json.Unmarshal(payload, &instruments); err != nil {
		return nil, false, eris.Wrap(err, "postgres: unmarshal instruments")
	}
	return instruments, true, nil
}

func (s *PostgresStore) PutInstruments(ctx context.Context, provider string, instruments []model.Instrument, ttl time.Duration) error {
	payload, err := json.Marshal(instruments)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal instruments")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO instrument_cache (provider, payload, fetched_at, expires_at)
		 VALUES ($1, $2, now(), now() + $3)
		 ON CONFLICT (provider)
		 DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		provider, payload, ttl,
	)
	return eris.Wrap(err, "postgres: put instruments")
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	total := 0
	for _, query := range []string{
		`DELETE FROM series_cache WHERE expires_at <= now()`,
		`DELETE FROM instrument_cache WHERE expires_at <= now()`,
	} {
		tag, err := s.pool.Exec(ctx, query)
		if err != nil {
			return total, eris.Wrap(err, "postgres: delete expired")
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/kpi-screener/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS series_cache (
	id         TEXT PRIMARY KEY,
	provider   TEXT NOT NULL,
	kpi        TEXT NOT NULL,
	frequency  TEXT NOT NULL,
	stock_id   INTEGER NOT NULL,
	points     TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL,
	UNIQUE (provider, kpi, frequency, stock_id)
);

CREATE TABLE IF NOT EXISTS instrument_cache (
	provider   TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_series_cache_expires_at ON series_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetSeries(ctx context.Context, key SeriesKey) (model.Series, bool, error) {
	var points string
	err := s.db.QueryRowContext(ctx,
		`SELECT points FROM series_cache
		 WHERE provider = ? AND kpi = ? AND frequency = ? AND stock_id = ? AND expires_at > ?`,
		key.Provider, key.KPI, string(key.Frequency), key.StockID, time.Now().UTC(),
	).Scan(&points)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get series")
	}

	var series model.Series
	if err := json.Unmarshal([]byte(points), &series); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: unmarshal series")
	}
	return series, true, nil
}

func (s *SQLiteStore) PutSeries(ctx context.Context, key SeriesKey, series model.Series, ttl time.Duration) error {
	points, err := json.Marshal(series)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal series")
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO series_cache (id, provider, kpi, frequency, stock_id, points, fetched_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, kpi, frequency, stock_id)
		 DO UPDATE SET points = excluded.points, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		uuid.New().String(), key.Provider, key.KPI, string(key.Frequency), key.StockID,
		string(points), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: put series")
}

func (s *SQLiteStore) GetInstruments(ctx context.Context, provider string) ([]model.Instrument, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM instrument_cache WHERE provider = ? AND expires_at > ?`,
		provider, time.Now().UTC(),
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get instruments")
	}

	var instruments []model.Instrument
	if err := json.Unmarshal([]byte(payload), &instruments); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: unmarshal instruments")
	}
	return instruments, true, nil
}

func (s *SQLiteStore) PutInstruments(ctx context.Context, provider string, instruments []model.Instrument, ttl time.Duration) error {
	payload, err := json.Marshal(instruments)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal instruments")
	}
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO instrument_cache (provider, payload, fetched_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (provider)
		 DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		provider, string(payload), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: put instruments")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	total := 0
	for _, query := range []string{
		`DELETE FROM series_cache WHERE expires_at <= ?`,
		`DELETE FROM instrument_cache WHERE expires_at <= ?`,
	} {
		res, err := s.db.ExecContext(ctx, query, now)
		if err != nil {
			return total, eris.Wrap(err, "sqlite: delete expired")
		}
		n, _ := res.RowsAffected()
		total += int(n)
	}
	return total, nil
}

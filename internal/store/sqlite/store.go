// Package sqlite persists OHLCV history and the known-instrument
// catalog, the relational half of the persistence surface: prices keyed
// by (symbol, ts) and symbols keyed by their exchange:symbol identity.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trading-systemv1/internal/model"
)

// Store wraps a sqlite3 database holding the prices and symbols
// tables.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS prices (
			symbol   TEXT NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL NOT NULL,
			low      REAL NOT NULL,
			high     REAL NOT NULL,
			close    REAL NOT NULL,
			volume   INTEGER NOT NULL,
			duration INTEGER NOT NULL,
			PRIMARY KEY (symbol, ts)
		);
		CREATE TABLE IF NOT EXISTS symbols (
			symbol   TEXT NOT NULL,
			exchange TEXT NOT NULL,
			name     TEXT NOT NULL,
			PRIMARY KEY (exchange, symbol)
		);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SavePrices upserts a batch of candles for symbol.
func (s *Store) SavePrices(symbol string, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO prices (symbol, ts, open, low, high, close, volume, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, ts) DO UPDATE SET
			open=excluded.open, low=excluded.low, high=excluded.high,
			close=excluded.close, volume=excluded.volume, duration=excluded.duration
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(symbol, c.Time.Unix(), c.Open, c.Low, c.High, c.Close, c.Volume, int64(c.Duration.Seconds())); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadPrices returns candles for symbol between start and end
// (inclusive), ascending by time. A zero end means "through the most
// recent candle".
func (s *Store) LoadPrices(symbol string, start, end time.Time) ([]model.Candle, error) {
	query := `SELECT ts, open, low, high, close, volume, duration FROM prices WHERE symbol = ? AND ts >= ?`
	args := []any{symbol, start.Unix()}
	if !end.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, end.Unix())
	}
	query += ` ORDER BY ts ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var ts, durationSecs int64
		var c model.Candle
		if err := rows.Scan(&ts, &c.Open, &c.Low, &c.High, &c.Close, &c.Volume, &durationSecs); err != nil {
			return nil, err
		}
		c.Time = time.Unix(ts, 0).UTC()
		c.Duration = time.Duration(durationSecs) * time.Second
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecentPrice returns the most recent candle for symbol.
func (s *Store) RecentPrice(symbol string) (model.Candle, bool, error) {
	row := s.db.QueryRow(`
		SELECT ts, open, low, high, close, volume, duration FROM prices
		WHERE symbol = ? ORDER BY ts DESC LIMIT 1
	`, symbol)

	var ts, durationSecs int64
	var c model.Candle
	err := row.Scan(&ts, &c.Open, &c.Low, &c.High, &c.Close, &c.Volume, &durationSecs)
	if err == sql.ErrNoRows {
		return model.Candle{}, false, nil
	}
	if err != nil {
		return model.Candle{}, false, err
	}
	c.Time = time.Unix(ts, 0).UTC()
	c.Duration = time.Duration(durationSecs) * time.Second
	return c, true, nil
}

// SaveSymbol upserts an instrument into the symbol catalog.
func (s *Store) SaveSymbol(inst model.Instrument) error {
	_, err := s.db.Exec(`
		INSERT INTO symbols (symbol, exchange, name) VALUES (?, ?, ?)
		ON CONFLICT(exchange, symbol) DO UPDATE SET name=excluded.name
	`, inst.Symbol, inst.Exchange, inst.Name)
	return err
}

// Symbols returns the full known-instrument catalog.
func (s *Store) Symbols() ([]model.Instrument, error) {
	rows, err := s.db.Query(`SELECT symbol, exchange, name FROM symbols`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		var inst model.Instrument
		if err := rows.Scan(&inst.Symbol, &inst.Exchange, &inst.Name); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

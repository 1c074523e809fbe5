package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"stockwatch/internal/model"
)

// Store persists the holdings universe and the daily price history in a
// SQLite database. It is safe for concurrent use.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so readers are not blocked while the collector writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent upserts.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] store opened: %s", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS holdings (
			ticker     TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			quantity   REAL NOT NULL DEFAULT 0,
			avg_cost   REAL NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS price_history (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker       TEXT NOT NULL,
			date         TEXT NOT NULL,
			open         REAL NOT NULL DEFAULT 0,
			high         REAL NOT NULL DEFAULT 0,
			low          REAL NOT NULL DEFAULT 0,
			close        REAL NOT NULL,
			volume       INTEGER NOT NULL DEFAULT 0,
			source       TEXT NOT NULL,
			created_at   INTEGER NOT NULL,
			collected_at INTEGER NOT NULL,
			UNIQUE (ticker, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_ticker ON price_history(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_date ON price_history(date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	log.Println("[INFO] closing store")
	return s.db.Close()
}

// SetHolding creates or replaces a position. A quantity of zero keeps
// the row but removes the ticker from the collection universe.
func (s *Store) SetHolding(ctx context.Context, ticker, name string, quantity, avgCost float64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO holdings (ticker, name, quantity, avg_cost, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET
			name = excluded.name,
			quantity = excluded.quantity,
			avg_cost = excluded.avg_cost,
			updated_at = excluded.updated_at`,
		ticker, name, quantity, avgCost, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("set holding %s: %w", ticker, err)
	}
	return nil
}

// RemoveHolding deletes a position entirely.
func (s *Store) RemoveHolding(ctx context.Context, ticker string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM holdings WHERE ticker = ?`, ticker); err != nil {
		return fmt.Errorf("remove holding %s: %w", ticker, err)
	}
	return nil
}

// HeldTickers returns the tickers with a positive held quantity, the
// collector's universe.
func (s *Store) HeldTickers(ctx context.Context) ([]string, error) {
	var tickers []string
	err := s.db.SelectContext(ctx, &tickers,
		`SELECT ticker FROM holdings WHERE quantity > 0 ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("held tickers: %w", err)
	}
	return tickers, nil
}

// UpsertDailyPrice writes one daily record. If a row for (ticker, date)
// already exists the close is replaced with the latest price, high/low
// are widened, and volume/source refreshed, so intra-day re-collection
// stays idempotent at day granularity.
func (s *Store) UpsertDailyPrice(ctx context.Context, rec *model.PriceRecord) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO price_history
		(ticker, date, open, high, low, close, volume, source, created_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			close = excluded.close,
			high = MAX(high, excluded.high),
			low = MIN(low, excluded.low),
			volume = excluded.volume,
			source = excluded.source,
			collected_at = excluded.collected_at`,
		rec.Ticker, rec.Date, rec.Open, rec.High, rec.Low, rec.Close,
		rec.Volume, rec.Source, now, now)
	if err != nil {
		return fmt.Errorf("upsert price %s %s: %w", rec.Ticker, rec.Date, err)
	}
	return nil
}

// InsertDailyBar writes a backfilled record only when no row exists for
// that day yet; collector-written rows are never overwritten.
func (s *Store) InsertDailyBar(ctx context.Context, rec *model.PriceRecord) (bool, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `INSERT INTO price_history
		(ticker, date, open, high, low, close, volume, source, created_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, date) DO NOTHING`,
		rec.Ticker, rec.Date, rec.Open, rec.High, rec.Low, rec.Close,
		rec.Volume, rec.Source, now, now)
	if err != nil {
		return false, fmt.Errorf("insert bar %s %s: %w", rec.Ticker, rec.Date, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// History returns persisted records for ticker since today minus days,
// ascending by date.
func (s *Store) History(ctx context.Context, ticker string, days int) ([]model.PriceRecord, error) {
	since := model.DateOf(time.Now().AddDate(0, 0, -days))

	rows, err := s.db.QueryxContext(ctx, `SELECT ticker, date, open, high, low, close, volume, source, collected_at
		FROM price_history
		WHERE ticker = ? AND date >= ?
		ORDER BY date ASC`, ticker, since)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", ticker, err)
	}
	defer rows.Close()

	var records []model.PriceRecord
	for rows.Next() {
		var rec model.PriceRecord
		var collectedAt int64
		if err := rows.Scan(&rec.Ticker, &rec.Date, &rec.Open, &rec.High, &rec.Low,
			&rec.Close, &rec.Volume, &rec.Source, &collectedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec.CollectedAt = time.Unix(collectedAt, 0).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats reports history totals and the most recent collection time.
func (s *Store) Stats(ctx context.Context) (total, tickers int, last *time.Time, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT ticker) FROM price_history`)
	if err = row.Scan(&total, &tickers); err != nil {
		return 0, 0, nil, fmt.Errorf("stats: %w", err)
	}

	var latest sql.NullInt64
	row = s.db.QueryRowContext(ctx, `SELECT MAX(collected_at) FROM price_history`)
	if err = row.Scan(&latest); err != nil {
		return 0, 0, nil, fmt.Errorf("stats latest: %w", err)
	}
	if latest.Valid {
		t := time.Unix(latest.Int64, 0).UTC()
		last = &t
	}
	return total, tickers, last, nil
}

package fxrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/cleared-dev/equitax/internal/model"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS quotes (
	currency TEXT NOT NULL,
	day      TEXT NOT NULL,
	bid      TEXT NOT NULL,
	ask      TEXT NOT NULL,
	PRIMARY KEY (currency, day)
);
`

// Store keeps published quotes in a local SQLite database so that runs can
// resolve rates offline. Decimals are stored as TEXT to stay exact.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the rate database at path. The path
// ":memory:" opens a private in-memory database.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating rate store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening rate store %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases consistent and avoids
	// writer contention on the file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing rate store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts quotes for currency.
func (s *Store) Save(ctx context.Context, currency string, quotes []Quote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO quotes (currency, day, bid, ask) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	cur := strings.ToUpper(currency)
	for _, q := range quotes {
		if _, err := stmt.ExecContext(ctx, cur, model.Day(q.Day).Format(dayFormat), q.Bid.String(), q.Ask.String()); err != nil {
			return fmt.Errorf("storing %s quote for %s: %w", cur, q.Day.Format(dayFormat), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing quotes: %w", err)
	}
	return nil
}

// Quotes implements Source.
func (s *Store) Quotes(ctx context.Context, currency string, from, to time.Time) ([]Quote, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT day, bid, ask FROM quotes WHERE currency = ? AND day >= ? AND day <= ? ORDER BY day",
		strings.ToUpper(currency), model.Day(from).Format(dayFormat), model.Day(to).Format(dayFormat))
	if err != nil {
		return nil, fmt.Errorf("querying quotes: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		var dayStr, bidStr, askStr string
		if err := rows.Scan(&dayStr, &bidStr, &askStr); err != nil {
			return nil, fmt.Errorf("scanning quote: %w", err)
		}
		q, err := parseStoredQuote(dayStr, bidStr, askStr)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quotes: %w", err)
	}
	return quotes, nil
}

// Span returns the first and last stored day for currency. ok is false when
// nothing is stored.
func (s *Store) Span(ctx context.Context, currency string) (first, last time.Time, ok bool, err error) {
	var minDay, maxDay sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT MIN(day), MAX(day) FROM quotes WHERE currency = ?", strings.ToUpper(currency)).
		Scan(&minDay, &maxDay)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("querying stored span: %w", err)
	}
	if !minDay.Valid || !maxDay.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	if first, err = time.Parse(dayFormat, minDay.String); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parsing stored day %q: %w", minDay.String, err)
	}
	if last, err = time.Parse(dayFormat, maxDay.String); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parsing stored day %q: %w", maxDay.String, err)
	}
	return first, last, true, nil
}

func parseStoredQuote(dayStr, bidStr, askStr string) (Quote, error) {
	d, err := time.Parse(dayFormat, dayStr)
	if err != nil {
		return Quote{}, fmt.Errorf("parsing stored day %q: %w", dayStr, err)
	}
	bid, err := decimal.NewFromString(bidStr)
	if err != nil {
		return Quote{}, fmt.Errorf("parsing stored bid %q: %w", bidStr, err)
	}
	ask, err := decimal.NewFromString(askStr)
	if err != nil {
		return Quote{}, fmt.Errorf("parsing stored ask %q: %w", askStr, err)
	}
	return Quote{Day: d, Bid: bid, Ask: ask}, nil
}

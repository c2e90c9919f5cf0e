// Package journal persists one row per processed delivery for audit and
// replay investigation. Journal writes are best effort: callers log and count
// failures but never fail a delivery over them.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Sentinel error kinds.
var (
	ErrOpenFailed  = errors.New("journal open failed")
	ErrWriteFailed = errors.New("journal write failed")
)

const schema = `
CREATE TABLE IF NOT EXISTS deliveries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	delivery_id TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	action      TEXT NOT NULL,
	item_id     TEXT NOT NULL,
	category    TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deliveries_delivery_id ON deliveries(delivery_id);
CREATE INDEX IF NOT EXISTS idx_deliveries_item_id ON deliveries(item_id);
`

// Entry is one journaled delivery outcome.
type Entry struct {
	DeliveryID string
	EventType  string
	Action     string
	ItemID     string
	Category   string
	Outcome    string
	Detail     string
	RecordedAt time.Time
}

// Store writes delivery outcomes to a local sqlite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path is empty", ErrOpenFailed)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	return &Store{db: db}, nil
}

// Record appends one entry. A zero RecordedAt is stamped with the current
// time.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (delivery_id, event_type, action, item_id, category, outcome, detail, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.DeliveryID, e.EventType, e.Action, e.ItemID, e.Category, e.Outcome, e.Detail, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// CountByDelivery reports how many entries exist for a delivery id. Used to
// spot redelivered webhooks after the fact.
func (s *Store) CountByDelivery(ctx context.Context, deliveryID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deliveries WHERE delivery_id = ?`, deliveryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return n, nil
}

// Recent returns the latest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT delivery_id, event_type, action, item_id, category, outcome, detail, recorded_at
		 FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.DeliveryID, &e.EventType, &e.Action, &e.ItemID,
			&e.Category, &e.Outcome, &e.Detail, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return entries, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

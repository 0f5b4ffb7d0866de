package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists engine records to a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp TEXT NOT NULL,
  level TEXT NOT NULL,
  event_type TEXT NOT NULL,
  message TEXT NOT NULL,
  metadata TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp TEXT NOT NULL,
  order_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  status TEXT NOT NULL,
  price REAL NOT NULL,
  quantity REAL NOT NULL,
  filled_qty REAL NOT NULL,
  mode TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp TEXT NOT NULL,
  trade_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  price REAL NOT NULL,
  quantity REAL NOT NULL,
  pnl REAL NOT NULL,
  mode TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS equity_curve (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp TEXT NOT NULL,
  equity REAL NOT NULL,
  realized_pnl REAL NOT NULL,
  unrealized_pnl REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp TEXT NOT NULL,
  symbol TEXT NOT NULL,
  side TEXT NOT NULL,
  entry_price REAL NOT NULL,
  quantity REAL NOT NULL,
  leverage INTEGER NOT NULL,
  mark_price REAL NOT NULL,
  unrealized_pnl REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
`)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// RecordEvent appends an event row
func (s *SQLiteStore) RecordEvent(ctx context.Context, level, eventType, message string, metadata map[string]any) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		meta = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (timestamp, level, event_type, message, metadata) VALUES (?, ?, ?, ?, ?)`,
		utcNow(), level, eventType, message, string(meta),
	)
	return err
}

// RecordOrder appends an order row
func (s *SQLiteStore) RecordOrder(ctx context.Context, record OrderRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (timestamp, order_id, symbol, side, status, price, quantity, filled_qty, mode)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		record.OrderID, record.Symbol, record.Side, record.Status,
		record.Price, record.Quantity, record.FilledQty, record.Mode,
	)
	return err
}

// RecordTrade appends a trade row
func (s *SQLiteStore) RecordTrade(ctx context.Context, record TradeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (timestamp, trade_id, order_id, symbol, side, price, quantity, pnl, mode)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		record.TradeID, record.OrderID, record.Symbol, record.Side,
		record.Price, record.Quantity, record.PnL, record.Mode,
	)
	return err
}

// RecordEquity appends a point to the equity curve
func (s *SQLiteStore) RecordEquity(ctx context.Context, record EquityRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO equity_curve (timestamp, equity, realized_pnl, unrealized_pnl) VALUES (?, ?, ?, ?)`,
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		record.Equity, record.RealizedPnL, record.UnrealizedPnL,
	)
	return err
}

// ReplacePositions replaces the positions snapshot atomically
func (s *SQLiteStore) ReplacePositions(ctx context.Context, timestamp time.Time, positions []PositionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return err
	}

	ts := timestamp.UTC().Format(time.RFC3339Nano)
	for _, p := range positions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO positions (timestamp, symbol, side, entry_price, quantity, leverage, mark_price, unrealized_pnl)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ts, p.Symbol, p.Side, p.EntryPrice, p.Quantity, p.Leverage, p.MarkPrice, p.UnrealizedPnL,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvent is a row returned by FetchRecentEvents
type RecentEvent struct {
	Timestamp string
	Level     string
	EventType string
	Message   string
	Metadata  string
}

// FetchRecentEvents returns the newest events, most recent first. Used by
// dashboards and tests, never by the engine itself.
func (s *SQLiteStore) FetchRecentEvents(ctx context.Context, limit int) ([]RecentEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, level, event_type, message, metadata FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []RecentEvent
	for rows.Next() {
		var e RecentEvent
		if err := rows.Scan(&e.Timestamp, &e.Level, &e.EventType, &e.Message, &e.Metadata); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// FetchLatestEquity returns the most recent equity point, or nil when the
// curve is empty.
func (s *SQLiteStore) FetchLatestEquity(ctx context.Context) (*EquityRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT timestamp, equity, realized_pnl, unrealized_pnl FROM equity_curve ORDER BY id DESC LIMIT 1`)

	var ts string
	var record EquityRecord
	if err := row.Scan(&ts, &record.Equity, &record.RealizedPnL, &record.UnrealizedPnL); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		record.Timestamp = parsed
	}
	return &record, nil
}

func utcNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

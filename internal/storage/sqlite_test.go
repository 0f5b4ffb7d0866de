package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CreatesDirectoryForPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "engine.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, path)
}

func TestSQLiteStore_EventRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.RecordEvent(ctx, "INFO", "ENGINE_START", "Engine started", map[string]any{"mode": "paper"})
	require.NoError(t, err)
	err = store.RecordEvent(ctx, "WARN", "RISK_BLOCK", "daily loss limit reached", nil)
	require.NoError(t, err)

	events, err := store.FetchRecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Most recent first
	assert.Equal(t, "RISK_BLOCK", events[0].EventType)
	assert.Equal(t, "ENGINE_START", events[1].EventType)
	assert.Contains(t, events[1].Metadata, "paper")
}

func TestSQLiteStore_LatestEquity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	latest, err := store.FetchLatestEquity(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "empty curve returns nil")

	first := EquityRecord{Timestamp: time.Now().UTC(), Equity: 10000, RealizedPnL: 0, UnrealizedPnL: 0}
	second := EquityRecord{Timestamp: time.Now().UTC(), Equity: 10050, RealizedPnL: 50, UnrealizedPnL: 0}
	require.NoError(t, store.RecordEquity(ctx, first))
	require.NoError(t, store.RecordEquity(ctx, second))

	latest, err = store.FetchLatestEquity(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 10050.0, latest.Equity)
	assert.Equal(t, 50.0, latest.RealizedPnL)
}

func TestSQLiteStore_OrderAndTradeInserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := store.RecordOrder(ctx, OrderRecord{
		Timestamp: now,
		OrderID:   "o-1",
		Symbol:    "BTCUSDT",
		Side:      "Buy",
		Status:    "Filled",
		Price:     50000,
		Quantity:  0.1,
		FilledQty: 0.1,
		Mode:      "paper",
	})
	require.NoError(t, err)

	err = store.RecordTrade(ctx, TradeRecord{
		Timestamp: now,
		TradeID:   "t-1",
		OrderID:   "o-1",
		Symbol:    "BTCUSDT",
		Side:      "Buy",
		Price:     50000,
		Quantity:  0.1,
		Mode:      "paper",
	})
	require.NoError(t, err)
}

func TestSQLiteStore_ReplacePositionsIsWholesale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	err := store.ReplacePositions(ctx, now, []PositionRecord{
		{Symbol: "BTCUSDT", Side: "LONG", EntryPrice: 50000, Quantity: 0.1, Leverage: 2, MarkPrice: 50100, UnrealizedPnL: 20},
		{Symbol: "ETHUSDT", Side: "SHORT", EntryPrice: 2000, Quantity: 1, Leverage: 2, MarkPrice: 1990, UnrealizedPnL: 20},
	})
	require.NoError(t, err)

	// The next snapshot replaces the previous one entirely
	err = store.ReplacePositions(ctx, now.Add(time.Second), []PositionRecord{
		{Symbol: "BTCUSDT", Side: "LONG", EntryPrice: 50000, Quantity: 0.1, Leverage: 2, MarkPrice: 50200, UnrealizedPnL: 40},
	})
	require.NoError(t, err)

	var count int
	row := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM positions`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_EmptySnapshotClearsPositions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.ReplacePositions(ctx, now, []PositionRecord{
		{Symbol: "BTCUSDT", Side: "LONG", EntryPrice: 50000, Quantity: 0.1, Leverage: 2, MarkPrice: 50000},
	}))
	require.NoError(t, store.ReplacePositions(ctx, now.Add(time.Second), nil))

	var count int
	row := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM positions`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 0, count)
}

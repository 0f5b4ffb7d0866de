package storage

import (
	"context"
	"time"
)

// OrderRecord is the append-only record of an order submission
type OrderRecord struct {
	Timestamp time.Time
	OrderID   string
	Symbol    string
	Side      string
	Status    string
	Price     float64
	Quantity  float64
	FilledQty float64
	Mode      string
}

// TradeRecord is the append-only record of an executed trade
type TradeRecord struct {
	Timestamp time.Time
	TradeID   string
	OrderID   string
	Symbol    string
	Side      string
	Price     float64
	Quantity  float64
	PnL       float64
	Mode      string
}

// EquityRecord is one point on the equity curve
type EquityRecord struct {
	Timestamp     time.Time
	Equity        float64
	RealizedPnL   float64
	UnrealizedPnL float64
}

// PositionRecord is one open position in a positions snapshot
type PositionRecord struct {
	Symbol        string
	Side          string
	EntryPrice    float64
	Quantity      float64
	Leverage      int
	MarkPrice     float64
	UnrealizedPnL float64
}

// Recorder is the write-side contract the engine depends on. Events,
// orders, trades and equity points are append-only; the positions snapshot
// is replaced wholesale every cycle. The engine never reads this state back,
// only the dashboard does.
type Recorder interface {
	RecordEvent(ctx context.Context, level, eventType, message string, metadata map[string]any) error
	RecordOrder(ctx context.Context, record OrderRecord) error
	RecordTrade(ctx context.Context, record TradeRecord) error
	RecordEquity(ctx context.Context, record EquityRecord) error
	ReplacePositions(ctx context.Context, timestamp time.Time, positions []PositionRecord) error
}

package exchange

import (
	"context"
)

// Side represents the direction of an order (string-based for API compatibility)
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Opposite returns the side that closes a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order represents the exchange's acknowledgment of a submitted order.
// AvgPrice and ExecutedQty carry the values reported by the exchange,
// not the requested ones.
type Order struct {
	OrderID      string
	Symbol       string
	Side         Side
	Status       string
	AvgPrice     float64
	ExecutedQty  float64
	RequestedQty float64
}

// PositionInfo represents an open position as reported by the exchange
type PositionInfo struct {
	Symbol        string
	Side          string
	Size          float64
	AvgPrice      float64
	MarkPrice     float64
	UnrealisedPnl float64
	Leverage      float64
}

// Client defines the operations the engine needs from an exchange.
// Every error returned by a Client is recoverable: the engine skips the
// affected step for the current cycle and retries on the next one.
type Client interface {
	GetName() string

	// Market data
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)

	// Account state
	GetPositions(ctx context.Context) ([]PositionInfo, error)

	// Trading
	CancelOpenOrders(ctx context.Context, symbol string) error
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (*Order, error)
}

// Config holds exchange selection and credentials
type Config struct {
	Name  string       `json:"name"`
	Bybit *BybitConfig `json:"bybit,omitempty"`
}

// BybitConfig holds Bybit-specific connection settings.
// API credentials are taken from the environment, never from config files.
type BybitConfig struct {
	APIKey    string `json:"-"`
	APISecret string `json:"-"`
	Testnet   bool   `json:"testnet"`
	Demo      bool   `json:"demo"`
	Category  string `json:"category"` // linear, inverse (default: linear)
}

package strategy

import (
	"github.com/lequangminh/ema-futures-bot/internal/exchange"
)

// Signal represents a directional entry signal produced by a strategy
type Signal struct {
	Symbol string
	Side   exchange.Side
	Reason string
}

// Strategy defines the interface for signal-generating trading strategies.
// Implementations must be deterministic for a given price history and must
// not keep state between calls: the engine replays the full history every
// cycle.
type Strategy interface {
	// GenerateSignals returns zero or one signal for the given price history
	GenerateSignals(symbol string, prices []float64) []Signal

	// GetName returns the name of the strategy
	GetName() string
}

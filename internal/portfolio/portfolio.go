package portfolio

import (
	"sort"
)

// Side represents the direction of an open position
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position represents a single open position. At most one position exists
// per symbol: there is no hedging.
type Position struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	Quantity   float64
	Leverage   int
}

// UnrealizedPnL values the position against the given mark price
func (p *Position) UnrealizedPnL(markPrice float64) float64 {
	if p.Side == SideLong {
		return (markPrice - p.EntryPrice) * p.Quantity * float64(p.Leverage)
	}
	return (p.EntryPrice - markPrice) * p.Quantity * float64(p.Leverage)
}

// Portfolio owns per-symbol position state and realized PnL accounting.
// It is mutated only through ApplyFill.
type Portfolio struct {
	initialEquity float64
	realizedPnL   float64
	positions     map[string]*Position
}

// New creates an empty portfolio with the given initial equity
func New(initialEquity float64) *Portfolio {
	return &Portfolio{
		initialEquity: initialEquity,
		positions:     make(map[string]*Position),
	}
}

// ApplyFill applies a fill to the portfolio and returns the realized PnL
// delta.
//
// No existing position opens a new one. A same-side fill merges: the entry
// price becomes the arithmetic mean of the old entry and the fill price
// (not size-weighted, matching the entry-price policy of the reference
// system) and quantities are summed. An opposite-side fill realizes the
// full unrealized PnL at the fill price and removes the position; partial
// closes and direct reversals are not modeled.
func (pf *Portfolio) ApplyFill(symbol string, side Side, price, quantity float64, leverage int) float64 {
	position, exists := pf.positions[symbol]
	if !exists {
		pf.positions[symbol] = &Position{
			Symbol:     symbol,
			Side:       side,
			EntryPrice: price,
			Quantity:   quantity,
			Leverage:   leverage,
		}
		return 0
	}

	if position.Side == side {
		position.EntryPrice = (position.EntryPrice + price) / 2
		position.Quantity += quantity
		return 0
	}

	pnl := position.UnrealizedPnL(price)
	pf.realizedPnL += pnl
	delete(pf.positions, symbol)
	return pnl
}

// Position returns the open position for a symbol, or nil
func (pf *Portfolio) Position(symbol string) *Position {
	return pf.positions[symbol]
}

// Open returns all open positions ordered by symbol
func (pf *Portfolio) Open() []*Position {
	positions := make([]*Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions
}

// InitialEquity returns the configured starting equity
func (pf *Portfolio) InitialEquity() float64 {
	return pf.initialEquity
}

// RealizedPnL returns the cumulative realized PnL
func (pf *Portfolio) RealizedPnL() float64 {
	return pf.realizedPnL
}

// UnrealizedPnL sums the unrealized PnL over all open positions. Positions
// without a mark price are valued at their entry price.
func (pf *Portfolio) UnrealizedPnL(markPrices map[string]float64) float64 {
	total := 0.0
	for symbol, position := range pf.positions {
		total += position.UnrealizedPnL(markOrEntry(markPrices, symbol, position))
	}
	return total
}

// TotalEquity returns initial equity plus realized and unrealized PnL
func (pf *Portfolio) TotalEquity(markPrices map[string]float64) float64 {
	return pf.initialEquity + pf.realizedPnL + pf.UnrealizedPnL(markPrices)
}

func markOrEntry(markPrices map[string]float64, symbol string, position *Position) float64 {
	if mark, ok := markPrices[symbol]; ok {
		return mark
	}
	return position.EntryPrice
}

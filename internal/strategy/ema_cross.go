package strategy

import (
	"fmt"

	"github.com/lequangminh/ema-futures-bot/internal/exchange"
)

// EMACrossStrategy signals on crossovers between a fast and a slow
// exponential moving average computed over the full price history.
type EMACrossStrategy struct {
	fastPeriod int
	slowPeriod int
}

// NewEMACross creates a new EMA crossover strategy
func NewEMACross(fastPeriod, slowPeriod int) *EMACrossStrategy {
	return &EMACrossStrategy{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

// GetName returns the strategy name with its periods
func (s *EMACrossStrategy) GetName() string {
	return fmt.Sprintf("EMA(%d/%d) crossover", s.fastPeriod, s.slowPeriod)
}

// GenerateSignals returns a Buy signal when the fast EMA crosses above the
// slow EMA and a Sell signal when it crosses below. Histories shorter than
// slowPeriod+2 produce no signal. A cross is normally detected on the last
// pair of EMA values; at exactly the minimum history length the pair one bar
// earlier is also inspected, since the warm-up gate suppressed it the cycle
// before. A cross therefore never fires on two consecutive cycles.
func (s *EMACrossStrategy) GenerateSignals(symbol string, prices []float64) []Signal {
	minLen := s.slowPeriod + 2
	if len(prices) < minLen {
		return nil
	}

	fast := emaSeries(prices, s.fastPeriod)
	slow := emaSeries(prices, s.slowPeriod)

	last := len(prices) - 1
	if signal := crossAt(fast, slow, last, symbol); signal != nil {
		return []Signal{*signal}
	}
	if len(prices) == minLen {
		if signal := crossAt(fast, slow, last-1, symbol); signal != nil {
			return []Signal{*signal}
		}
	}

	return nil
}

// crossAt checks for an EMA cross between index i-1 and index i
func crossAt(fast, slow []float64, i int, symbol string) *Signal {
	prevFast, currFast := fast[i-1], fast[i]
	prevSlow, currSlow := slow[i-1], slow[i]

	if prevFast <= prevSlow && currFast > currSlow {
		return &Signal{Symbol: symbol, Side: exchange.SideBuy, Reason: "EMA bullish crossover"}
	}
	if prevFast >= prevSlow && currFast < currSlow {
		return &Signal{Symbol: symbol, Side: exchange.SideSell, Reason: "EMA bearish crossover"}
	}
	return nil
}

// emaSeries computes the full EMA series for the given period, seeded with
// the first price.
func emaSeries(prices []float64, period int) []float64 {
	alpha := 2.0 / float64(period+1)

	values := make([]float64, len(prices))
	for i, price := range prices {
		if i == 0 {
			values[i] = price
			continue
		}
		values[i] = (price-values[i-1])*alpha + values[i-1]
	}

	return values
}

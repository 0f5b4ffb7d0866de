package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lequangminh/ema-futures-bot/internal/exchange"
)

func TestEMACross_InsufficientHistory(t *testing.T) {
	strat := NewEMACross(2, 3)

	// Anything shorter than slowPeriod+2 yields no signal
	for _, prices := range [][]float64{
		nil,
		{1},
		{1, 2},
		{1, 2, 3},
		{1, 2, 3, 4},
	} {
		signals := strat.GenerateSignals("BTCUSDT", prices)
		assert.Empty(t, signals, "expected no signal for %d prices", len(prices))
	}
}

func TestEMACross_BullishCrossover(t *testing.T) {
	strat := NewEMACross(2, 3)
	prices := []float64{1, 1, 1, 2, 3}

	signals := strat.GenerateSignals("BTCUSDT", prices)

	require.Len(t, signals, 1)
	assert.Equal(t, "BTCUSDT", signals[0].Symbol)
	assert.Equal(t, exchange.SideBuy, signals[0].Side)
	assert.Contains(t, signals[0].Reason, "bullish")
}

func TestEMACross_BearishCrossover(t *testing.T) {
	strat := NewEMACross(2, 3)
	prices := []float64{3, 3, 3, 2, 1}

	signals := strat.GenerateSignals("ETHUSDT", prices)

	require.Len(t, signals, 1)
	assert.Equal(t, exchange.SideSell, signals[0].Side)
	assert.Contains(t, signals[0].Reason, "bearish")
}

func TestEMACross_NoCrossNoSignal(t *testing.T) {
	strat := NewEMACross(2, 3)

	// Monotonically rising prices keep the fast EMA above the slow EMA
	// after the initial cross; replaying a longer history with the same
	// trend must not re-fire.
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	signals := strat.GenerateSignals("BTCUSDT", prices)
	assert.Empty(t, signals)

	// Flat prices never cross
	flat := []float64{5, 5, 5, 5, 5, 5}
	signals = strat.GenerateSignals("BTCUSDT", flat)
	assert.Empty(t, signals)
}

func TestEMACross_DoesNotRefireOnNextBar(t *testing.T) {
	strat := NewEMACross(2, 3)

	signals := strat.GenerateSignals("BTCUSDT", []float64{1, 1, 1, 2, 3})
	require.Len(t, signals, 1)

	// One bar later the same cross must not produce a second entry
	signals = strat.GenerateSignals("BTCUSDT", []float64{1, 1, 1, 2, 3, 4})
	assert.Empty(t, signals)
}

func TestEMACross_Deterministic(t *testing.T) {
	strat := NewEMACross(2, 3)
	prices := []float64{1, 1, 1, 2, 3}

	first := strat.GenerateSignals("BTCUSDT", prices)
	second := strat.GenerateSignals("BTCUSDT", prices)

	assert.Equal(t, first, second)
}

func TestEMASeries_SeededWithFirstPrice(t *testing.T) {
	series := emaSeries([]float64{10, 20}, 3)

	require.Len(t, series, 2)
	assert.Equal(t, 10.0, series[0])
	// alpha = 2/(3+1) = 0.5 -> 10 + (20-10)*0.5
	assert.InDelta(t, 15.0, series[1], 1e-9)
}

package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lequangminh/ema-futures-bot/internal/config"
	"github.com/lequangminh/ema-futures-bot/internal/exchange"
	"github.com/lequangminh/ema-futures-bot/internal/logger"
	"github.com/lequangminh/ema-futures-bot/internal/storage"
)

type recordedEvent struct {
	Level     string
	EventType string
	Message   string
	Metadata  map[string]any
}

type fakeRecorder struct {
	events []recordedEvent
	orders []storage.OrderRecord
	trades []storage.TradeRecord
}

func (f *fakeRecorder) RecordEvent(_ context.Context, level, eventType, message string, metadata map[string]any) error {
	f.events = append(f.events, recordedEvent{level, eventType, message, metadata})
	return nil
}

func (f *fakeRecorder) RecordOrder(_ context.Context, record storage.OrderRecord) error {
	f.orders = append(f.orders, record)
	return nil
}

func (f *fakeRecorder) RecordTrade(_ context.Context, record storage.TradeRecord) error {
	f.trades = append(f.trades, record)
	return nil
}

func (f *fakeRecorder) RecordEquity(context.Context, storage.EquityRecord) error { return nil }

func (f *fakeRecorder) ReplacePositions(context.Context, time.Time, []storage.PositionRecord) error {
	return nil
}

type fakeExchange struct {
	placeResp *exchange.Order
	placeErr  error
	placed    []exchange.Side
}

func (f *fakeExchange) GetName() string { return "fake" }

func (f *fakeExchange) GetLatestPrice(context.Context, string) (float64, error) { return 0, nil }

func (f *fakeExchange) GetPositions(context.Context) ([]exchange.PositionInfo, error) {
	return nil, nil
}

func (f *fakeExchange) CancelOpenOrders(context.Context, string) error { return nil }

func (f *fakeExchange) PlaceMarketOrder(_ context.Context, _ string, side exchange.Side, _ float64) (*exchange.Order, error) {
	f.placed = append(f.placed, side)
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	return f.placeResp, nil
}

func newTestExecutor(t *testing.T, mode config.Mode, slippage float64, client exchange.Client, store storage.Recorder) *Executor {
	t.Helper()
	log, err := logger.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return NewExecutor(mode, slippage, client, store, log)
}

func TestSubmit_PaperBuyFillsAboveReference(t *testing.T) {
	store := &fakeRecorder{}
	executor := newTestExecutor(t, config.ModePaper, 0.001, nil, store)

	fill, err := executor.Submit(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     exchange.SideBuy,
		Quantity: 0.5,
		Price:    50000,
	})

	require.NoError(t, err)
	require.NotNil(t, fill)
	assert.InDelta(t, 50050.0, fill.Price, 1e-9)
	assert.Equal(t, 0.5, fill.Quantity)

	require.Len(t, store.orders, 1)
	assert.Equal(t, "Filled", store.orders[0].Status)
	require.Len(t, store.trades, 1)
	assert.Equal(t, store.orders[0].OrderID, store.trades[0].OrderID)
}

func TestSubmit_PaperSellFillsBelowReference(t *testing.T) {
	store := &fakeRecorder{}
	executor := newTestExecutor(t, config.ModePaper, 0.001, nil, store)

	fill, err := executor.Submit(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     exchange.SideSell,
		Quantity: 0.5,
		Price:    50000,
	})

	require.NoError(t, err)
	require.NotNil(t, fill)
	assert.InDelta(t, 49950.0, fill.Price, 1e-9)
}

func TestSubmit_LiveFillUsesExchangeReportedValues(t *testing.T) {
	client := &fakeExchange{placeResp: &exchange.Order{
		OrderID:     "abc-123",
		Status:      "Filled",
		AvgPrice:    50123.5,
		ExecutedQty: 0.4,
	}}
	store := &fakeRecorder{}
	executor := newTestExecutor(t, config.ModeLive, 0, client, store)

	fill, err := executor.Submit(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     exchange.SideBuy,
		Quantity: 0.5,
		Price:    50000,
	})

	require.NoError(t, err)
	require.NotNil(t, fill)
	// The fill carries what the exchange executed, not what was requested
	assert.Equal(t, 50123.5, fill.Price)
	assert.Equal(t, 0.4, fill.Quantity)
	require.Len(t, store.trades, 1)
	assert.Equal(t, "abc-123", store.trades[0].OrderID)
}

func TestSubmit_LiveZeroExecutedQuantityMeansNoTrade(t *testing.T) {
	client := &fakeExchange{placeResp: &exchange.Order{
		OrderID:     "abc-456",
		Status:      "New",
		ExecutedQty: 0,
	}}
	store := &fakeRecorder{}
	executor := newTestExecutor(t, config.ModeLive, 0, client, store)

	fill, err := executor.Submit(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     exchange.SideBuy,
		Quantity: 0.5,
		Price:    50000,
	})

	require.NoError(t, err)
	assert.Nil(t, fill)
	// The order is still recorded, but no trade is
	assert.Len(t, store.orders, 1)
	assert.Empty(t, store.trades)
}

func TestSubmit_LiveRejectionRecordsOrderFailEvent(t *testing.T) {
	client := &fakeExchange{placeErr: errors.New("insufficient balance")}
	store := &fakeRecorder{}
	executor := newTestExecutor(t, config.ModeLive, 0, client, store)

	fill, err := executor.Submit(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     exchange.SideSell,
		Quantity: 0.5,
		Price:    50000,
	})

	require.Error(t, err)
	assert.Nil(t, fill)
	require.Len(t, store.events, 1)
	assert.Equal(t, "ORDER_FAIL", store.events[0].EventType)
	assert.Contains(t, store.events[0].Message, "insufficient balance")
}

func TestSubmit_LiveFallsBackToReferencePriceWhenAvgMissing(t *testing.T) {
	client := &fakeExchange{placeResp: &exchange.Order{
		OrderID:     "abc-789",
		Status:      "Filled",
		AvgPrice:    0,
		ExecutedQty: 0.5,
	}}
	store := &fakeRecorder{}
	executor := newTestExecutor(t, config.ModeLive, 0, client, store)

	fill, err := executor.Submit(context.Background(), OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     exchange.SideBuy,
		Quantity: 0.5,
		Price:    50000,
	})

	require.NoError(t, err)
	require.NotNil(t, fill)
	assert.Equal(t, 50000.0, fill.Price)
}

package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lequangminh/ema-futures-bot/internal/config"
	"github.com/lequangminh/ema-futures-bot/internal/exchange"
	"github.com/lequangminh/ema-futures-bot/internal/logger"
	"github.com/lequangminh/ema-futures-bot/internal/storage"
)

// OrderRequest is an intended market order. Price is the reference price
// used for paper fills and for order records; live fills use the price the
// exchange reports.
type OrderRequest struct {
	Symbol   string
	Side     exchange.Side
	Quantity float64
	Price    float64
}

// Fill is the terminal outcome of a submitted order
type Fill struct {
	Symbol   string
	Side     exchange.Side
	Price    float64
	Quantity float64
	Mode     config.Mode
}

// Executor converts intended trades into fills. Paper mode fills
// synchronously with synthetic slippage; testnet and live modes delegate to
// the exchange client and treat the order acknowledgment as the trade
// outcome when the exchange reports an executed quantity.
type Executor struct {
	mode        config.Mode
	slippagePct float64
	client      exchange.Client
	store       storage.Recorder
	log         *logger.Logger
}

// NewExecutor creates a new order executor
func NewExecutor(mode config.Mode, slippagePct float64, client exchange.Client, store storage.Recorder, log *logger.Logger) *Executor {
	return &Executor{
		mode:        mode,
		slippagePct: slippagePct,
		client:      client,
		store:       store,
		log:         log,
	}
}

// Submit submits an order and returns the resulting fill. A nil fill with a
// nil error means the exchange acknowledged the order without executing
// anything; a non-nil error means the submission failed. Neither case is
// fatal to the caller: ledger and risk state stay untouched.
func (e *Executor) Submit(ctx context.Context, order OrderRequest) (*Fill, error) {
	if e.mode == config.ModePaper {
		return e.submitPaper(ctx, order), nil
	}
	return e.submitLive(ctx, order)
}

// submitPaper simulates an immediate fill at the reference price adjusted by
// a fixed slippage fraction: buys fill higher, sells fill lower.
func (e *Executor) submitPaper(ctx context.Context, order OrderRequest) *Fill {
	filledPrice := order.Price * (1 - e.slippagePct)
	if order.Side == exchange.SideBuy {
		filledPrice = order.Price * (1 + e.slippagePct)
	}

	orderID := uuid.NewString()
	now := time.Now().UTC()

	e.recordOrder(ctx, storage.OrderRecord{
		Timestamp: now,
		OrderID:   orderID,
		Symbol:    order.Symbol,
		Side:      string(order.Side),
		Status:    "Filled",
		Price:     filledPrice,
		Quantity:  order.Quantity,
		FilledQty: order.Quantity,
		Mode:      string(e.mode),
	})
	e.recordTrade(ctx, storage.TradeRecord{
		Timestamp: now,
		TradeID:   uuid.NewString(),
		OrderID:   orderID,
		Symbol:    order.Symbol,
		Side:      string(order.Side),
		Price:     filledPrice,
		Quantity:  order.Quantity,
		Mode:      string(e.mode),
	})

	return &Fill{
		Symbol:   order.Symbol,
		Side:     order.Side,
		Price:    filledPrice,
		Quantity: order.Quantity,
		Mode:     e.mode,
	}
}

// submitLive places a market order on the exchange. Rejections are recorded
// as events and surfaced as errors; they never raise beyond the caller's
// cycle.
func (e *Executor) submitLive(ctx context.Context, order OrderRequest) (*Fill, error) {
	ack, err := e.client.PlaceMarketOrder(ctx, order.Symbol, order.Side, order.Quantity)
	if err != nil {
		e.recordEvent(ctx, "ERROR", "ORDER_FAIL", err.Error(), map[string]any{
			"symbol": order.Symbol,
			"side":   string(order.Side),
		})
		return nil, fmt.Errorf("order submission failed: %w", err)
	}

	fillPrice := ack.AvgPrice
	if fillPrice == 0 {
		fillPrice = order.Price
	}

	e.recordOrder(ctx, storage.OrderRecord{
		Timestamp: time.Now().UTC(),
		OrderID:   ack.OrderID,
		Symbol:    order.Symbol,
		Side:      string(order.Side),
		Status:    ack.Status,
		Price:     fillPrice,
		Quantity:  order.Quantity,
		FilledQty: ack.ExecutedQty,
		Mode:      string(e.mode),
	})

	// A zero executed quantity means the acknowledgment carried no
	// execution yet; callers treat it as "no trade occurred".
	if ack.ExecutedQty == 0 {
		e.log.Warning("Order %s acknowledged without execution (%s %s)", ack.OrderID, order.Side, order.Symbol)
		return nil, nil
	}

	e.recordTrade(ctx, storage.TradeRecord{
		Timestamp: time.Now().UTC(),
		TradeID:   uuid.NewString(),
		OrderID:   ack.OrderID,
		Symbol:    order.Symbol,
		Side:      string(order.Side),
		Price:     fillPrice,
		Quantity:  ack.ExecutedQty,
		Mode:      string(e.mode),
	})

	return &Fill{
		Symbol:   order.Symbol,
		Side:     order.Side,
		Price:    fillPrice,
		Quantity: ack.ExecutedQty,
		Mode:     e.mode,
	}, nil
}

func (e *Executor) recordOrder(ctx context.Context, record storage.OrderRecord) {
	if err := e.store.RecordOrder(ctx, record); err != nil {
		e.log.Warning("Failed to record order %s: %v", record.OrderID, err)
	}
}

func (e *Executor) recordTrade(ctx context.Context, record storage.TradeRecord) {
	if err := e.store.RecordTrade(ctx, record); err != nil {
		e.log.Warning("Failed to record trade %s: %v", record.TradeID, err)
	}
}

func (e *Executor) recordEvent(ctx context.Context, level, eventType, message string, metadata map[string]any) {
	if err := e.store.RecordEvent(ctx, level, eventType, message, metadata); err != nil {
		e.log.Warning("Failed to record event %s: %v", eventType, err)
	}
}

package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lequangminh/ema-futures-bot/internal/config"
	"github.com/lequangminh/ema-futures-bot/internal/control"
	"github.com/lequangminh/ema-futures-bot/internal/exchange"
	"github.com/lequangminh/ema-futures-bot/internal/execution"
	"github.com/lequangminh/ema-futures-bot/internal/logger"
	"github.com/lequangminh/ema-futures-bot/internal/monitoring"
	"github.com/lequangminh/ema-futures-bot/internal/notifications"
	"github.com/lequangminh/ema-futures-bot/internal/portfolio"
	"github.com/lequangminh/ema-futures-bot/internal/risk"
	"github.com/lequangminh/ema-futures-bot/internal/storage"
	"github.com/lequangminh/ema-futures-bot/internal/strategy"
)

// Deps bundles the collaborators the engine orchestrates
type Deps struct {
	Exchange   exchange.Client
	Strategy   strategy.Strategy
	Risk       *risk.Manager
	Portfolio  *portfolio.Portfolio
	Executor   *execution.Executor
	Store      storage.Recorder
	Interlocks control.InterlockSource
	Logger     *logger.Logger
	Notifier   notifications.Notifier
}

// Engine runs the trading decision loop: one strictly sequential cycle per
// poll interval, no concurrent mutation of any state. Cancellation is
// cooperative and only observed at cycle boundaries.
type Engine struct {
	cfg        *config.Config
	client     exchange.Client
	strategy   strategy.Strategy
	risk       *risk.Manager
	portfolio  *portfolio.Portfolio
	executor   *execution.Executor
	store      storage.Recorder
	interlocks control.InterlockSource
	log        *logger.Logger
	notifier   notifications.Notifier

	history map[string][]float64
}

// New creates a new engine
func New(cfg *config.Config, deps Deps) *Engine {
	history := make(map[string][]float64, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		history[symbol] = nil
	}

	return &Engine{
		cfg:        cfg,
		client:     deps.Exchange,
		strategy:   deps.Strategy,
		risk:       deps.Risk,
		portfolio:  deps.Portfolio,
		executor:   deps.Executor,
		store:      deps.Store,
		interlocks: deps.Interlocks,
		log:        deps.Logger,
		notifier:   deps.Notifier,
		history:    history,
	}
}

// Run executes the polling loop until the stop interlock is observed or the
// context is cancelled. It refuses to start in non-paper modes when the
// exchange reports pre-existing open positions.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.verifyCleanStart(ctx); err != nil {
		return err
	}

	e.log.Info("Engine started in %s mode with strategy %s", e.cfg.Mode, e.strategy.GetName())
	e.recordEvent(ctx, "INFO", "ENGINE_START", fmt.Sprintf("Engine started (%s)", e.cfg.Mode), nil)
	e.notify("success", fmt.Sprintf("Engine started in %s mode", e.cfg.Mode))
	e.printStartupSummary()

	for {
		select {
		case <-ctx.Done():
			e.log.Warning("Context cancelled. Shutting down.")
			e.recordEvent(context.Background(), "WARN", "ENGINE_STOP", "Context cancelled", nil)
			return nil
		default:
		}

		if e.interlocks.StopRequested() {
			e.log.Warning("Stop flag detected. Shutting down.")
			e.recordEvent(ctx, "WARN", "ENGINE_STOP", "Stop flag detected", nil)
			e.notify("warning", "Engine stopped by stop interlock")
			return nil
		}

		e.runCycle(ctx)

		select {
		case <-ctx.Done():
		case <-time.After(e.cfg.PollInterval()):
		}
	}
}

// verifyCleanStart halts startup when the exchange already holds open
// positions the engine knows nothing about. Adopting them silently would
// corrupt PnL accounting, so this is a hard safety stop.
func (e *Engine) verifyCleanStart(ctx context.Context) error {
	if e.cfg.Mode == config.ModePaper {
		return nil
	}

	positions, err := e.client.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("startup position check failed: %w", err)
	}

	var open []exchange.PositionInfo
	for _, p := range positions {
		if p.Size != 0 {
			open = append(open, p)
		}
	}
	if len(open) > 0 {
		e.recordEvent(ctx, "WARN", "SYNC", "Open positions detected on startup. Halting for safety.",
			map[string]any{"count": len(open)})
		e.log.Warning("Open positions detected on startup. Halting for safety.")
		return fmt.Errorf("refusing to start: %d open position(s) already on the exchange", len(open))
	}

	return nil
}

// runCycle performs one full poll cycle
func (e *Engine) runCycle(ctx context.Context) {
	// Mirror the external kill switch into the risk gate before anything
	// else is decided this cycle.
	if e.interlocks.KillSwitchEngaged() {
		e.risk.EnableKillSwitch()
	} else {
		e.risk.DisableKillSwitch()
	}

	// One permission decision per cycle. Skipped signals are reported with
	// this cycle-level reason, not a per-symbol one.
	canTrade, reason := e.risk.CanTrade()
	monitoring.SetRiskBlocked(!canTrade)
	if !canTrade {
		e.recordEvent(ctx, "WARN", "RISK_BLOCK", reason, nil)
	}

	prices, err := e.fetchPrices(ctx)
	if err != nil {
		// A failed fetch skips all trading logic this cycle; positions and
		// risk state are left untouched.
		e.log.Error("Price fetch failed: %v", err)
		e.recordEvent(ctx, "ERROR", "PRICE_FETCH", err.Error(), nil)
		monitoring.RecordError("price_fetch")
		return
	}
	for symbol, price := range prices {
		monitoring.UpdatePrice(symbol, price)
	}

	if e.risk.KillSwitchEngaged() {
		e.handleKillSwitch(ctx, prices)
	}

	for _, symbol := range e.cfg.Symbols {
		e.history[symbol] = append(e.history[symbol], prices[symbol])
		e.processSignals(ctx, symbol, prices[symbol], canTrade, reason)
	}

	e.snapshot(ctx, prices)
}

func (e *Engine) fetchPrices(ctx context.Context) (map[string]float64, error) {
	prices := make(map[string]float64, len(e.cfg.Symbols))
	for _, symbol := range e.cfg.Symbols {
		price, err := e.client.GetLatestPrice(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch price for %s: %w", symbol, err)
		}
		prices[symbol] = price
	}
	return prices, nil
}

// handleKillSwitch cancels resting orders (non-paper modes) and, when
// configured, force-closes every open position at the current mark.
func (e *Engine) handleKillSwitch(ctx context.Context, prices map[string]float64) {
	if e.cfg.Mode != config.ModePaper {
		for _, symbol := range e.cfg.Symbols {
			if err := e.client.CancelOpenOrders(ctx, symbol); err != nil {
				e.log.Error("Failed to cancel open orders for %s: %v", symbol, err)
				monitoring.RecordError("cancel_orders")
			}
		}
	}

	if !e.cfg.Risk.KillSwitchClosePositions {
		return
	}

	for _, position := range e.portfolio.Open() {
		closeSide := exchange.SideSell
		if position.Side == portfolio.SideShort {
			closeSide = exchange.SideBuy
		}

		price, ok := prices[position.Symbol]
		if !ok {
			price = position.EntryPrice
		}

		fill, err := e.executor.Submit(ctx, execution.OrderRequest{
			Symbol:   position.Symbol,
			Side:     closeSide,
			Quantity: position.Quantity,
			Price:    price,
		})
		if err != nil {
			e.log.Error("Kill switch close failed for %s: %v", position.Symbol, err)
			monitoring.RecordError("order_submit")
			continue
		}
		if fill == nil {
			continue
		}

		pnl := e.applyFill(fill)
		e.recordEvent(ctx, "WARN", "KILL_SWITCH_CLOSE",
			fmt.Sprintf("Closed position %s", position.Symbol),
			map[string]any{"price": fill.Price, "qty": fill.Quantity, "pnl": pnl})
		e.log.Trade("Kill switch closed %s %s qty=%v price=%v pnl=%v",
			position.Side, position.Symbol, fill.Quantity, fill.Price, pnl)
		e.notify("warning", fmt.Sprintf("Kill switch closed %s position (PnL %.2f)", position.Symbol, pnl))
	}
}

// processSignals evaluates the strategy for one symbol and executes at most
// one entry.
func (e *Engine) processSignals(ctx context.Context, symbol string, price float64, canTrade bool, reason string) {
	signals := e.strategy.GenerateSignals(symbol, e.history[symbol])

	for _, signal := range signals {
		e.recordEvent(ctx, "INFO", "SIGNAL", signal.Reason, map[string]any{
			"symbol": symbol,
			"side":   string(signal.Side),
			"price":  price,
		})

		if !canTrade {
			e.recordEvent(ctx, "INFO", "SIGNAL_SKIPPED",
				fmt.Sprintf("Signal skipped: %s", reason),
				map[string]any{"symbol": symbol, "side": string(signal.Side)})
			e.log.Info("Signal skipped for %s (%s): %s", symbol, signal.Side, reason)
			continue
		}

		notional := e.portfolio.InitialEquity() * e.cfg.PositionSizePct
		quantity := roundQty(notional / price)

		fill, err := e.executor.Submit(ctx, execution.OrderRequest{
			Symbol:   symbol,
			Side:     signal.Side,
			Quantity: quantity,
			Price:    price,
		})
		if err != nil {
			e.log.Error("Order submission failed for %s: %v", symbol, err)
			monitoring.RecordError("order_submit")
			continue
		}
		if fill == nil {
			continue
		}

		pnl := e.applyFill(fill)
		e.recordEvent(ctx, "INFO", "TRADE",
			fmt.Sprintf("Trade executed %s %s", signal.Side, symbol),
			map[string]any{"price": fill.Price, "qty": fill.Quantity, "pnl": pnl})
		e.log.Trade("%s %s qty=%v price=%v pnl=%v", signal.Side, symbol, fill.Quantity, fill.Price, pnl)
		monitoring.RecordTrade(symbol, string(signal.Side))
	}
}

// applyFill feeds one fill into the ledger and the risk gate and returns
// the realized PnL delta.
func (e *Engine) applyFill(fill *execution.Fill) float64 {
	pnl := e.portfolio.ApplyFill(fill.Symbol, positionSide(fill.Side), fill.Price, fill.Quantity, e.cfg.Leverage)
	e.risk.RecordTradePnL(pnl)
	return pnl
}

// snapshot hands the equity point and the positions snapshot to storage
func (e *Engine) snapshot(ctx context.Context, prices map[string]float64) {
	now := time.Now().UTC()
	equity := e.portfolio.TotalEquity(prices)
	monitoring.UpdateEquity(equity)

	if err := e.store.RecordEquity(ctx, storage.EquityRecord{
		Timestamp:     now,
		Equity:        equity,
		RealizedPnL:   e.portfolio.RealizedPnL(),
		UnrealizedPnL: e.portfolio.UnrealizedPnL(prices),
	}); err != nil {
		e.log.Warning("Failed to record equity: %v", err)
	}

	open := e.portfolio.Open()
	records := make([]storage.PositionRecord, 0, len(open))
	for _, position := range open {
		mark, ok := prices[position.Symbol]
		if !ok {
			mark = position.EntryPrice
		}
		records = append(records, storage.PositionRecord{
			Symbol:        position.Symbol,
			Side:          string(position.Side),
			EntryPrice:    position.EntryPrice,
			Quantity:      position.Quantity,
			Leverage:      position.Leverage,
			MarkPrice:     mark,
			UnrealizedPnL: position.UnrealizedPnL(mark),
		})
	}
	if err := e.store.ReplacePositions(ctx, now, records); err != nil {
		e.log.Warning("Failed to record positions snapshot: %v", err)
	}

	e.log.Status("equity=%.2f realized=%.2f unrealized=%.2f open_positions=%d",
		equity, e.portfolio.RealizedPnL(), e.portfolio.UnrealizedPnL(prices), len(open))
}

func (e *Engine) recordEvent(ctx context.Context, level, eventType, message string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	if err := e.store.RecordEvent(ctx, level, eventType, message, metadata); err != nil {
		e.log.Warning("Failed to record event %s: %v", eventType, err)
	}
}

func (e *Engine) notify(level, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.SendAlert(level, message); err != nil {
		e.log.Warning("Failed to send alert: %v", err)
	}
}

func positionSide(side exchange.Side) portfolio.Side {
	if side == exchange.SideBuy {
		return portfolio.SideLong
	}
	return portfolio.SideShort
}

// roundQty rounds an order quantity to 6 decimal places
func roundQty(qty float64) float64 {
	return math.Round(qty*1e6) / 1e6
}

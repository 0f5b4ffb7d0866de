package monitoring

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ema_bot_trades_total",
			Help: "Total number of trades executed",
		},
		[]string{"symbol", "side"},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ema_bot_current_price",
			Help: "Latest observed price per symbol",
		},
		[]string{"symbol"},
	)

	totalEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ema_bot_total_equity",
			Help: "Current total equity (initial + realized + unrealized PnL)",
		},
	)

	riskBlocked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ema_bot_risk_blocked",
			Help: "Whether the risk gate currently blocks trading (1) or not (0)",
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ema_bot_errors_total",
			Help: "Total number of recoverable errors by type",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(totalEquity)
	prometheus.MustRegister(riskBlocked)
	prometheus.MustRegister(errorsTotal)
}

// RecordTrade records an executed trade
func RecordTrade(symbol, side string) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
}

// UpdatePrice updates the latest price gauge for a symbol
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateEquity updates the total equity gauge
func UpdateEquity(equity float64) {
	totalEquity.Set(equity)
}

// SetRiskBlocked records whether the risk gate blocks trading this cycle
func SetRiskBlocked(blocked bool) {
	if blocked {
		riskBlocked.Set(1)
	} else {
		riskBlocked.Set(0)
	}
}

// RecordError records a recoverable error of the given type
func RecordError(errType string) {
	errorsTotal.WithLabelValues(errType).Inc()
}

var started = time.Now()

// healthResponse is the payload of the health endpoint
type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// HealthHandler serves a minimal JSON liveness check
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status: "ok",
		Uptime: time.Since(started).Round(time.Second).String(),
	})
}

// NewServeMux returns a mux serving /metrics and /health
func NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", HealthHandler)
	return mux
}

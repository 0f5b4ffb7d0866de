package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/lequangminh/ema-futures-bot/internal/exchange"
)

// Client wraps the Bybit V5 API client behind the exchange.Client interface.
// All calls are retried with exponential backoff for transient API errors.
type Client struct {
	httpClient *bybit_api.Client
	category   string
	testnet    bool
	demo       bool
	retry      RetryConfig
}

// NewClient creates a new Bybit client from the given configuration
func NewClient(cfg *exchange.BybitConfig) *Client {
	var baseURL string
	if cfg.Demo {
		// Demo trading environment (paper-money fills on mainnet data)
		baseURL = "https://api-demo.bybit.com"
	} else if cfg.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		cfg.APIKey,
		cfg.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	category := cfg.Category
	if category == "" {
		category = "linear"
	}

	return &Client{
		httpClient: httpClient,
		category:   category,
		testnet:    cfg.Testnet,
		demo:       cfg.Demo,
		retry:      DefaultRetryConfig(),
	}
}

// GetName returns the exchange name
func (c *Client) GetName() string {
	return "Bybit"
}

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.demo {
		return "demo"
	} else if c.testnet {
		return "testnet"
	}
	return "mainnet"
}

// GetLatestPrice gets the latest traded price for a symbol
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	var result interface{}
	err := c.withRetry(ctx, func() error {
		var callErr error
		result, callErr = c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		return callErr
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get latest price for %s: %w", symbol, err)
	}

	price, err := c.parseLatestPriceResponse(result)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price response: %w", err)
	}

	return price, nil
}

// GetPositions retrieves open futures positions with settlement in USDT
func (c *Client) GetPositions(ctx context.Context) ([]exchange.PositionInfo, error) {
	params := map[string]interface{}{
		"category":   c.category,
		"settleCoin": "USDT",
	}

	var result interface{}
	err := c.withRetry(ctx, func() error {
		var callErr error
		result, callErr = c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	positions, err := c.parsePositionsResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse positions response: %w", err)
	}

	return positions, nil
}

// CancelOpenOrders cancels all open orders for a symbol
func (c *Client) CancelOpenOrders(ctx context.Context, symbol string) error {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	err := c.withRetry(ctx, func() error {
		result, callErr := c.httpClient.NewUtaBybitServiceWithParams(params).CancelAllOrders(ctx)
		if callErr != nil {
			return callErr
		}
		return checkServerResponse(result)
	})
	if err != nil {
		return fmt.Errorf("failed to cancel open orders for %s: %w", symbol, err)
	}

	return nil
}

// PlaceMarketOrder places a market order and returns the exchange's
// acknowledgment. The returned AvgPrice and ExecutedQty come from the order
// status looked up right after placement; when the lookup fails the
// acknowledgment is returned with zero executed quantity.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.Side, quantity float64) (*exchange.Order, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %v", quantity)
	}

	params := map[string]interface{}{
		"category":  c.category,
		"symbol":    symbol,
		"side":      string(side),
		"orderType": "Market",
		"qty":       strconv.FormatFloat(quantity, 'f', -1, 64),
	}

	var result interface{}
	err := c.withRetry(ctx, func() error {
		var callErr error
		result, callErr = c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to place market order: %w", err)
	}

	orderID, err := c.parseOrderAck(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}

	order := &exchange.Order{
		OrderID:      orderID,
		Symbol:       symbol,
		Side:         side,
		Status:       "New",
		RequestedQty: quantity,
	}

	// The create response only carries the order ID; the execution report
	// has to be looked up separately.
	if status, statusErr := c.getOrderExecution(ctx, symbol, orderID); statusErr == nil {
		order.Status = status.Status
		order.AvgPrice = status.AvgPrice
		order.ExecutedQty = status.ExecutedQty
	}

	return order, nil
}

// orderExecution holds the execution report of a placed order
type orderExecution struct {
	Status      string
	AvgPrice    float64
	ExecutedQty float64
}

// getOrderExecution looks up the execution state of an order in the realtime
// order list (open + recently filled orders).
func (c *Client) getOrderExecution(ctx context.Context, symbol, orderID string) (*orderExecution, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	var result interface{}
	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get order status: %w", err)
	}

	serverResp, ok := result.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return nil, NewBybitError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var orderResult struct {
		List []struct {
			OrderID     string `json:"orderId"`
			OrderStatus string `json:"orderStatus"`
			AvgPrice    string `json:"avgPrice"`
			CumExecQty  string `json:"cumExecQty"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &orderResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order result: %w", err)
	}

	for _, item := range orderResult.List {
		if item.OrderID == orderID {
			return &orderExecution{
				Status:      item.OrderStatus,
				AvgPrice:    parseFloat64(item.AvgPrice),
				ExecutedQty: parseFloat64(item.CumExecQty),
			}, nil
		}
	}

	return nil, fmt.Errorf("order %s not found", orderID)
}

// parseLatestPriceResponse extracts the last price from a ticker response
func (c *Client) parseLatestPriceResponse(response interface{}) (float64, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return 0, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return 0, NewBybitError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal result: %w", err)
	}

	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &tickerResult); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ticker result: %w", err)
	}

	if len(tickerResult.List) == 0 {
		return 0, fmt.Errorf("no ticker data in response")
	}

	price := parseFloat64(tickerResult.List[0].LastPrice)
	if price <= 0 {
		return 0, fmt.Errorf("invalid last price %q", tickerResult.List[0].LastPrice)
	}

	return price, nil
}

// parsePositionsResponse parses the position list response
func (c *Client) parsePositionsResponse(response interface{}) ([]exchange.PositionInfo, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return nil, NewBybitError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var positionResult struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			AvgPrice      string `json:"avgPrice"`
			MarkPrice     string `json:"markPrice"`
			UnrealisedPnl string `json:"unrealisedPnl"`
			Leverage      string `json:"leverage"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &positionResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position result: %w", err)
	}

	positions := make([]exchange.PositionInfo, 0, len(positionResult.List))
	for _, item := range positionResult.List {
		positions = append(positions, exchange.PositionInfo{
			Symbol:        item.Symbol,
			Side:          item.Side,
			Size:          parseFloat64(item.Size),
			AvgPrice:      parseFloat64(item.AvgPrice),
			MarkPrice:     parseFloat64(item.MarkPrice),
			UnrealisedPnl: parseFloat64(item.UnrealisedPnl),
			Leverage:      parseFloat64(item.Leverage),
		})
	}

	return positions, nil
}

// parseOrderAck extracts the order ID from an order placement response
func (c *Client) parseOrderAck(response interface{}) (string, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return "", fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return "", NewBybitError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	var orderResult struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(resultBytes, &orderResult); err != nil {
		return "", fmt.Errorf("failed to unmarshal order result: %w", err)
	}
	if orderResult.OrderID == "" {
		return "", fmt.Errorf("order response missing orderId")
	}

	return orderResult.OrderID, nil
}

// checkServerResponse validates the API-level return code of a response
func checkServerResponse(response interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return NewBybitError(serverResp.RetCode, serverResp.RetMsg)
	}
	return nil
}

func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// BybitError represents a Bybit API error with its return code
type BybitError struct {
	Code    int
	Message string
}

// NewBybitError creates a new BybitError
func NewBybitError(code int, message string) *BybitError {
	return &BybitError{Code: code, Message: message}
}

func (e *BybitError) Error() string {
	return fmt.Sprintf("Bybit API error %d: %s", e.Code, e.Message)
}

// Common Bybit error codes
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeInsufficientBalance = 110007
)

// IsRetryableError determines if an error should be retried
func IsRetryableError(err error) bool {
	if bybitErr, ok := err.(*BybitError); ok {
		switch bybitErr.Code {
		case ErrCodeRateLimitExceeded,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

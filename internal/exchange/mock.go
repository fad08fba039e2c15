package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"botcore/internal/types"
)

// MockClient implements Client for testing and mock mode without touching
// the real exchange. All wallets share one instance so the simulated order
// book survives across per-wallet factory calls.
type MockClient struct {
	logger *slog.Logger

	mu           sync.RWMutex
	prices       map[string]float64
	priceErrs    map[string]string
	balances     []types.AssetBalance
	orders       map[int64]*RawOrder
	orderIDSeq   atomic.Int64
	pingErr      string
	failingPairs map[string]string // symbol -> error message for ListOrders
}

// MockOption configures the mock client
type MockOption func(*MockClient)

// WithMockPrice sets the quoted price for a symbol
func WithMockPrice(symbol string, price float64) MockOption {
	return func(m *MockClient) {
		m.prices[symbol] = price
	}
}

// WithMockBalance adds a balance to the simulated account
func WithMockBalance(asset string, free, locked float64) MockOption {
	return func(m *MockClient) {
		m.balances = append(m.balances, types.AssetBalance{Asset: asset, Free: free, Locked: locked})
	}
}

// WithPingFailure makes connectivity probes fail
func WithPingFailure(msg string) MockOption {
	return func(m *MockClient) {
		m.pingErr = msg
	}
}

// WithFailingPair makes order listing fail for one symbol
func WithFailingPair(symbol, msg string) MockOption {
	return func(m *MockClient) {
		m.failingPairs[symbol] = msg
	}
}

// NewMockClient creates a mock exchange client
func NewMockClient(logger *slog.Logger, opts ...MockOption) *MockClient {
	m := &MockClient{
		logger:       logger,
		prices:       make(map[string]float64),
		priceErrs:    make(map[string]string),
		orders:       make(map[int64]*RawOrder),
		failingPairs: make(map[string]string),
	}

	for _, opt := range opts {
		opt(m)
	}

	if len(m.prices) == 0 {
		m.prices["BTCUSDT"] = 65000.0
		m.prices["ETHUSDT"] = 3500.0
		m.prices["BNBUSDT"] = 600.0
	}
	if len(m.balances) == 0 {
		m.balances = []types.AssetBalance{
			{Asset: "USDT", Free: 10000, Locked: 0},
			{Asset: "BTC", Free: 1, Locked: 0},
		}
	}

	return m
}

// NewMockFactory returns a Factory handing out the same mock client for
// every credential set
func NewMockFactory(m *MockClient) Factory {
	return func(apiKey, apiSecret string, useTestnet bool) Client {
		return m
	}
}

// SetPrice updates the quoted price for a symbol (for tests)
func (m *MockClient) SetPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
	delete(m.priceErrs, symbol)
}

// SetPriceError makes price queries for a symbol fail (for tests)
func (m *MockClient) SetPriceError(symbol, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceErrs[symbol] = msg
}

// InjectOrder adds a raw order to the simulated order book (for tests)
func (m *MockClient) InjectOrder(o *RawOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.OrderID] = o
}

// Ping verifies simulated connectivity
func (m *MockClient) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pingErr != "" {
		return fmt.Errorf("%s", m.pingErr)
	}
	return nil
}

// GetPrice returns the configured price for a symbol
func (m *MockClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if msg, ok := m.priceErrs[symbol]; ok {
		return 0, fmt.Errorf("%s", msg)
	}
	price, ok := m.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("symbol %s not found", symbol)
	}
	return price, nil
}

// GetAvailableSymbols returns the symbols with configured prices
func (m *MockClient) GetAvailableSymbols(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make([]string, 0, len(m.prices))
	for s := range m.prices {
		symbols = append(symbols, s)
	}
	return symbols, nil
}

// CreateOrder simulates an immediate fill for market orders and an open
// order for limit orders
func (m *MockClient) CreateOrder(ctx context.Context, req OrderRequest) (*RawOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orderID := m.orderIDSeq.Add(1)
	qty := strconv.FormatFloat(req.Quantity, 'f', -1, 64)

	order := &RawOrder{
		OrderID:      orderID,
		Symbol:       req.Symbol,
		Side:         string(req.Side),
		OrigQuantity: qty,
		Time:         time.Now().UnixMilli(),
	}

	if req.Price != nil {
		order.Type = string(types.OrderTypeLimit)
		order.Status = string(types.OrderStatusNew)
		order.Price = strconv.FormatFloat(*req.Price, 'f', -1, 64)
		order.ExecutedQuantity = "0"
		order.CummulativeQuoteQuantity = "0"
	} else {
		fillPrice := m.prices[req.Symbol]
		order.Type = string(types.OrderTypeMarket)
		order.Status = string(types.OrderStatusFilled)
		order.ExecutedQuantity = qty
		order.CummulativeQuoteQuantity = strconv.FormatFloat(req.Quantity*fillPrice, 'f', -1, 64)
	}

	m.orders[orderID] = order

	m.logger.Info("[MOCK] Order executed",
		"order_id", orderID,
		"symbol", req.Symbol,
		"side", req.Side,
		"type", order.Type,
	)

	return order, nil
}

// GetOrder returns a simulated order by id
func (m *MockClient) GetOrder(ctx context.Context, symbol string, orderID int64) (*RawOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[orderID]
	if !ok || order.Symbol != symbol {
		return nil, fmt.Errorf("order %d not found", orderID)
	}
	out := *order
	return &out, nil
}

// ListOrders returns all simulated orders for a symbol
func (m *MockClient) ListOrders(ctx context.Context, symbol string) ([]*RawOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if msg, ok := m.failingPairs[symbol]; ok {
		return nil, fmt.Errorf("%s", msg)
	}

	orders := make([]*RawOrder, 0)
	for _, o := range m.orders {
		if o.Symbol == symbol {
			out := *o
			orders = append(orders, &out)
		}
	}
	return orders, nil
}

// CancelOrder marks a simulated order as canceled
func (m *MockClient) CancelOrder(ctx context.Context, symbol string, orderID int64) (*RawOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok || order.Symbol != symbol {
		return nil, fmt.Errorf("order %d not found", orderID)
	}

	order.Status = string(types.OrderStatusCanceled)
	order.UpdateTime = time.Now().UnixMilli()

	m.logger.Info("[MOCK] Order canceled", "order_id", orderID, "symbol", symbol)

	out := *order
	return &out, nil
}

// GetBalances returns the simulated account balances
func (m *MockClient) GetBalances(ctx context.Context) ([]types.AssetBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	balances := make([]types.AssetBalance, len(m.balances))
	copy(balances, m.balances)
	return balances, nil
}

package exchange

import (
	"context"

	"botcore/internal/types"
)

// Client is the capability boundary to the exchange. Implementations wrap a
// single credential set; callers obtain one per wallet through a Factory.
type Client interface {
	// Ping verifies connectivity and credentials
	Ping(ctx context.Context) error

	// GetPrice returns the current price for a trading pair
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetAvailableSymbols returns the pairs currently open for trading
	GetAvailableSymbols(ctx context.Context) ([]string, error)

	// CreateOrder places an order. A nil price means MARKET; a price means
	// LIMIT with good-til-canceled time in force.
	CreateOrder(ctx context.Context, req OrderRequest) (*RawOrder, error)

	// GetOrder queries a single order
	GetOrder(ctx context.Context, symbol string, orderID int64) (*RawOrder, error)

	// ListOrders returns all orders for a symbol
	ListOrders(ctx context.Context, symbol string) ([]*RawOrder, error)

	// CancelOrder cancels an open order
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*RawOrder, error)

	// GetBalances returns account balances with non-zero amounts
	GetBalances(ctx context.Context) ([]types.AssetBalance, error)
}

// Factory builds a Client for one credential set. The process entry point
// decides whether this produces live or mock clients.
type Factory func(apiKey, apiSecret string, useTestnet bool) Client

// OrderRequest describes an order to place
type OrderRequest struct {
	Symbol   string
	Side     types.Side
	Quantity float64
	Price    *float64 // nil => MARKET, set => LIMIT/GTC
}

// RawOrder carries an order as the exchange reports it, before domain
// mapping. Numeric fields stay strings so a partial response never fails
// the transport layer; the trading service maps them leniently.
type RawOrder struct {
	OrderID                  int64
	Symbol                   string
	Side                     string
	Type                     string
	Status                   string
	Price                    string
	OrigQuantity             string
	ExecutedQuantity         string
	CummulativeQuoteQuantity string
	Time                     int64 // creation, ms since epoch
	UpdateTime               int64 // last update, ms since epoch, 0 if unknown
}

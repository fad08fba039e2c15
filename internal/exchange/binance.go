package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/adshao/go-binance/v2"

	"botcore/internal/types"
)

// SpotTestnetBaseURL is the Binance spot testnet endpoint
const SpotTestnetBaseURL = "https://testnet.binance.vision"

// BinanceClient wraps the Binance API client for one credential set
type BinanceClient struct {
	client *binance.Client
	logger *slog.Logger
}

// NewBinanceClient creates a new Binance API client. With useTestnet set the
// client talks to the spot testnet instead of production.
func NewBinanceClient(apiKey, secretKey string, useTestnet bool, logger *slog.Logger) *BinanceClient {
	client := binance.NewClient(apiKey, secretKey)
	if useTestnet {
		client.BaseURL = SpotTestnetBaseURL
	}
	return &BinanceClient{
		client: client,
		logger: logger,
	}
}

// NewFactory returns a Factory producing live Binance clients
func NewFactory(logger *slog.Logger) Factory {
	return func(apiKey, apiSecret string, useTestnet bool) Client {
		return NewBinanceClient(apiKey, apiSecret, useTestnet, logger)
	}
}

// Ping verifies connectivity with the exchange
func (b *BinanceClient) Ping(ctx context.Context) error {
	return b.client.NewPingService().Do(ctx)
}

// GetPrice returns the current price for a symbol
func (b *BinanceClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get price for %s: %w", symbol, err)
	}

	if len(prices) == 0 {
		return 0, fmt.Errorf("no price found for %s", symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse price: %w", err)
	}

	return price, nil
}

// GetAvailableSymbols returns the symbols currently open for trading
func (b *BinanceClient) GetAvailableSymbols(ctx context.Context) ([]string, error) {
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status == "TRADING" {
			symbols = append(symbols, s.Symbol)
		}
	}
	return symbols, nil
}

// CreateOrder places an order on Binance
func (b *BinanceClient) CreateOrder(ctx context.Context, req OrderRequest) (*RawOrder, error) {
	var side binance.SideType
	if req.Side == types.SideBuy {
		side = binance.SideTypeBuy
	} else {
		side = binance.SideTypeSell
	}

	quantityStr := strconv.FormatFloat(req.Quantity, 'f', -1, 64)

	service := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Quantity(quantityStr)

	if req.Price != nil {
		priceStr := strconv.FormatFloat(*req.Price, 'f', -1, 64)
		service = service.
			Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(priceStr)
	} else {
		service = service.Type(binance.OrderTypeMarket)
	}

	order, err := service.Do(ctx)
	if err != nil {
		b.logger.Error("[BINANCE] CreateOrder failed",
			"symbol", req.Symbol,
			"side", req.Side,
			"error", err,
		)
		return nil, err
	}

	b.logger.Info("[BINANCE] Order placed",
		"order_id", order.OrderID,
		"symbol", order.Symbol,
		"side", order.Side,
		"status", order.Status,
	)

	return &RawOrder{
		OrderID:                  order.OrderID,
		Symbol:                   order.Symbol,
		Side:                     string(order.Side),
		Type:                     string(order.Type),
		Status:                   string(order.Status),
		Price:                    order.Price,
		OrigQuantity:             order.OrigQuantity,
		ExecutedQuantity:         order.ExecutedQuantity,
		CummulativeQuoteQuantity: order.CummulativeQuoteQuantity,
		Time:                     order.TransactTime,
	}, nil
}

// GetOrder queries a single order
func (b *BinanceClient) GetOrder(ctx context.Context, symbol string, orderID int64) (*RawOrder, error) {
	order, err := b.client.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, err
	}
	return rawFromOrder(order), nil
}

// ListOrders returns all orders for a symbol
func (b *BinanceClient) ListOrders(ctx context.Context, symbol string) ([]*RawOrder, error) {
	orders, err := b.client.NewListOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*RawOrder, len(orders))
	for i, o := range orders {
		result[i] = rawFromOrder(o)
	}
	return result, nil
}

// CancelOrder cancels an open order
func (b *BinanceClient) CancelOrder(ctx context.Context, symbol string, orderID int64) (*RawOrder, error) {
	res, err := b.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, err
	}

	b.logger.Info("[BINANCE] Order canceled",
		"order_id", res.OrderID,
		"symbol", res.Symbol,
	)

	return &RawOrder{
		OrderID:                  res.OrderID,
		Symbol:                   res.Symbol,
		Side:                     string(res.Side),
		Type:                     string(res.Type),
		Status:                   string(res.Status),
		Price:                    res.Price,
		OrigQuantity:             res.OrigQuantity,
		ExecutedQuantity:         res.ExecutedQuantity,
		CummulativeQuoteQuantity: res.CummulativeQuoteQuantity,
		Time:                     res.TransactTime,
	}, nil
}

// GetBalances returns account balances with non-zero free or locked amounts
func (b *BinanceClient) GetBalances(ctx context.Context) ([]types.AssetBalance, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	balances := make([]types.AssetBalance, 0)
	for _, bal := range account.Balances {
		free, _ := strconv.ParseFloat(bal.Free, 64)
		locked, _ := strconv.ParseFloat(bal.Locked, 64)
		if free > 0 || locked > 0 {
			balances = append(balances, types.AssetBalance{
				Asset:  bal.Asset,
				Free:   free,
				Locked: locked,
			})
		}
	}
	return balances, nil
}

// rawFromOrder converts a full Binance order into the transport type
func rawFromOrder(o *binance.Order) *RawOrder {
	return &RawOrder{
		OrderID:                  o.OrderID,
		Symbol:                   o.Symbol,
		Side:                     string(o.Side),
		Type:                     string(o.Type),
		Status:                   string(o.Status),
		Price:                    o.Price,
		OrigQuantity:             o.OrigQuantity,
		ExecutedQuantity:         o.ExecutedQuantity,
		CummulativeQuoteQuantity: o.CummulativeQuoteQuantity,
		Time:                     o.Time,
		UpdateTime:               o.UpdateTime,
	}
}

package trading

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"botcore/internal/exchange"
	"botcore/internal/types"
	"botcore/internal/vault"
)

// fallbackSymbols is queried when an order listing names no symbol
var fallbackSymbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}

// Service is the trading gateway: it translates domain calls into exchange
// calls for a wallet's credentials and keeps an in-memory ledger of every
// order it has seen. The ledger is never pruned; it lives and dies with the
// process.
type Service struct {
	logger    *slog.Logger
	vault     *vault.Vault
	newClient exchange.Factory

	// market is an unauthenticated client for public endpoints
	market exchange.Client

	mu     sync.RWMutex
	orders map[string]types.OrderRecord
}

// NewService creates a trading gateway
func NewService(v *vault.Vault, newClient exchange.Factory, logger *slog.Logger) *Service {
	return &Service{
		logger:    logger,
		vault:     v,
		newClient: newClient,
		market:    newClient("", "", false),
		orders:    make(map[string]types.OrderRecord),
	}
}

// clientFor resolves a wallet's credentials into an exchange client.
// NotFound and credential errors pass through untouched.
func (s *Service) clientFor(walletID string) (exchange.Client, error) {
	apiKey, apiSecret, useTestnet, err := s.vault.ResolveCredentials(walletID)
	if err != nil {
		return nil, err
	}
	return s.newClient(apiKey, apiSecret, useTestnet), nil
}

// PlaceBuyOrder places a buy order. A nil price means MARKET, a price means
// LIMIT with good-til-canceled time in force.
func (s *Service) PlaceBuyOrder(ctx context.Context, symbol string, quantity float64, price *float64, walletID string) (types.OrderRecord, error) {
	return s.placeOrder(ctx, symbol, types.SideBuy, quantity, price, walletID)
}

// PlaceSellOrder places a sell order with the same price semantics as
// PlaceBuyOrder
func (s *Service) PlaceSellOrder(ctx context.Context, symbol string, quantity float64, price *float64, walletID string) (types.OrderRecord, error) {
	return s.placeOrder(ctx, symbol, types.SideSell, quantity, price, walletID)
}

func (s *Service) placeOrder(ctx context.Context, symbol string, side types.Side, quantity float64, price *float64, walletID string) (types.OrderRecord, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return types.OrderRecord{}, &types.ValidationError{Message: "symbol is required"}
	}
	if quantity <= 0 {
		return types.OrderRecord{}, &types.ValidationError{Message: "quantity must be greater than zero"}
	}
	if price != nil && *price <= 0 {
		return types.OrderRecord{}, &types.ValidationError{Message: "price must be greater than zero"}
	}

	client, err := s.clientFor(walletID)
	if err != nil {
		return types.OrderRecord{}, err
	}

	raw, err := client.CreateOrder(ctx, exchange.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
	})
	if err != nil {
		return types.OrderRecord{}, &types.GatewayError{Message: fmt.Sprintf("failed to place %s order", strings.ToLower(string(side))), Err: err}
	}

	record := s.mapOrder(raw)
	s.remember(record)

	s.logger.Info("[TRADING] Order placed",
		"order_id", record.OrderID,
		"symbol", record.Symbol,
		"side", record.Side,
		"type", record.Type,
		"quantity", record.Quantity,
	)

	return record, nil
}

// GetOrder queries one order and refreshes its ledger entry
func (s *Service) GetOrder(ctx context.Context, orderID, walletID, symbol string) (types.OrderRecord, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return types.OrderRecord{}, err
	}

	client, err := s.clientFor(walletID)
	if err != nil {
		return types.OrderRecord{}, err
	}

	raw, err := client.GetOrder(ctx, symbol, id)
	if err != nil {
		return types.OrderRecord{}, &types.GatewayError{Message: "failed to get order", Err: err}
	}

	record := s.mapOrder(raw)
	s.remember(record)
	return record, nil
}

// GetOrders lists recent orders newest-first. When symbol is empty, a fixed
// set of common pairs is queried and merged; a pair-level failure is logged
// and skipped rather than aborting the whole call.
func (s *Service) GetOrders(ctx context.Context, walletID, symbol string) ([]types.OrderRecord, error) {
	client, err := s.clientFor(walletID)
	if err != nil {
		return nil, err
	}

	var raws []*exchange.RawOrder
	if symbol != "" {
		raws, err = client.ListOrders(ctx, strings.ToUpper(symbol))
		if err != nil {
			return nil, &types.GatewayError{Message: "failed to list orders", Err: err}
		}
	} else {
		for _, pair := range fallbackSymbols {
			pairOrders, err := client.ListOrders(ctx, pair)
			if err != nil {
				s.logger.Warn("[TRADING] Skipping pair in order listing",
					"symbol", pair,
					"error", err,
				)
				continue
			}
			raws = append(raws, pairOrders...)
		}
	}

	records := make([]types.OrderRecord, 0, len(raws))
	for _, raw := range raws {
		record := s.mapOrder(raw)
		s.remember(record)
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// CancelOrder cancels an open order and refreshes its ledger entry
func (s *Service) CancelOrder(ctx context.Context, orderID, walletID, symbol string) (types.OrderRecord, error) {
	id, err := parseOrderID(orderID)
	if err != nil {
		return types.OrderRecord{}, err
	}

	client, err := s.clientFor(walletID)
	if err != nil {
		return types.OrderRecord{}, err
	}

	raw, err := client.CancelOrder(ctx, symbol, id)
	if err != nil {
		return types.OrderRecord{}, &types.GatewayError{Message: "failed to cancel order", Err: err}
	}

	record := s.mapOrder(raw)
	s.remember(record)

	s.logger.Info("[TRADING] Order canceled", "order_id", record.OrderID, "symbol", record.Symbol)
	return record, nil
}

// GetPrice returns the current price for a symbol. Price data is public, so
// no wallet is involved.
func (s *Service) GetPrice(ctx context.Context, symbol string) (float64, error) {
	price, err := s.market.GetPrice(ctx, strings.ToUpper(symbol))
	if err != nil {
		return 0, &types.GatewayError{Message: fmt.Sprintf("failed to get price for %s", symbol), Err: err}
	}
	return price, nil
}

// GetAvailableSymbols returns the pairs currently open for trading
func (s *Service) GetAvailableSymbols(ctx context.Context) ([]string, error) {
	symbols, err := s.market.GetAvailableSymbols(ctx)
	if err != nil {
		return nil, &types.GatewayError{Message: "failed to get available symbols", Err: err}
	}
	return symbols, nil
}

// remember inserts or overwrites the ledger entry for a record
func (s *Service) remember(record types.OrderRecord) {
	s.mu.Lock()
	s.orders[record.OrderID] = record
	s.mu.Unlock()
}

// mapOrder converts an exchange order into the domain record. Missing
// side/type/status fields fall back to BUY/MARKET/NEW instead of failing
// the call; the ambiguity is surfaced in the log, never swallowed.
func (s *Service) mapOrder(raw *exchange.RawOrder) types.OrderRecord {
	var defaulted []string

	orderID := "unknown"
	if raw.OrderID != 0 {
		orderID = strconv.FormatInt(raw.OrderID, 10)
	} else {
		defaulted = append(defaulted, "order_id")
	}

	side := types.Side(raw.Side)
	if side != types.SideBuy && side != types.SideSell {
		side = types.SideBuy
		defaulted = append(defaulted, "side")
	}

	orderType := types.OrderType(raw.Type)
	if orderType != types.OrderTypeMarket && orderType != types.OrderTypeLimit {
		orderType = types.OrderTypeMarket
		defaulted = append(defaulted, "type")
	}

	status := types.OrderStatus(raw.Status)
	switch status {
	case types.OrderStatusNew, types.OrderStatusPartiallyFilled, types.OrderStatusFilled,
		types.OrderStatusCanceled, types.OrderStatusRejected, types.OrderStatusExpired:
	default:
		status = types.OrderStatusNew
		defaulted = append(defaulted, "status")
	}

	quantity, _ := strconv.ParseFloat(raw.OrigQuantity, 64)
	executed, _ := strconv.ParseFloat(raw.ExecutedQuantity, 64)
	cumQuote, _ := strconv.ParseFloat(raw.CummulativeQuoteQuantity, 64)

	var price *float64
	if p, err := strconv.ParseFloat(raw.Price, 64); err == nil && p > 0 {
		price = &p
	}

	createdAt := time.Now().UTC()
	if raw.Time > 0 {
		createdAt = time.UnixMilli(raw.Time).UTC()
	}

	var updatedAt *time.Time
	if raw.UpdateTime > 0 {
		t := time.UnixMilli(raw.UpdateTime).UTC()
		updatedAt = &t
	}

	if len(defaulted) > 0 {
		s.logger.Warn("[TRADING] Incomplete order response, defaults applied",
			"order_id", orderID,
			"symbol", raw.Symbol,
			"fields", strings.Join(defaulted, ","),
		)
	}

	return types.OrderRecord{
		OrderID:                 orderID,
		Symbol:                  raw.Symbol,
		Side:                    side,
		Type:                    orderType,
		Status:                  status,
		Quantity:                quantity,
		Price:                   price,
		ExecutedQuantity:        executed,
		CumulativeQuoteQuantity: cumQuote,
		CreatedAt:               createdAt,
		UpdatedAt:               updatedAt,
	}
}

// parseOrderID validates the external string form of an exchange order id
func parseOrderID(orderID string) (int64, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return 0, &types.ValidationError{Message: fmt.Sprintf("invalid order id: %s", orderID)}
	}
	return id, nil
}

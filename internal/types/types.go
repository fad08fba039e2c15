package types

import (
	"fmt"
	"strings"
	"time"
)

// BotStatus represents the lifecycle state of the trading bot
type BotStatus string

const (
	BotStatusStopped BotStatus = "stopped"
	BotStatusRunning BotStatus = "running"
	BotStatusError   BotStatus = "error"
)

// Strategy identifies the trading strategy the bot evaluates
type Strategy string

const (
	StrategySimple Strategy = "simple"
	StrategyGrid   Strategy = "grid"
)

// Signal is the advisory output of a strategy evaluation. It is not an order.
type Signal string

const (
	SignalNone Signal = "NONE"
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
)

// Side represents buy or sell
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType represents market or limit
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus mirrors the exchange's order lifecycle states
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// DefaultIntervalSeconds is used when a BotConfig omits the polling interval.
const DefaultIntervalSeconds = 60

// MinIntervalSeconds is the lowest polling interval the bot accepts.
const MinIntervalSeconds = 5

// BotConfig holds the configuration submitted to start the bot.
// Immutable once the bot is running.
type BotConfig struct {
	Symbol          string   `json:"symbol"`
	IntervalSeconds int      `json:"interval_seconds"`
	MaxAmount       float64  `json:"max_amount"`
	WalletID        string   `json:"wallet_id"`
	Strategy        Strategy `json:"strategy"`

	// Strategy-specific thresholds, percent. Defaults applied at evaluation.
	BuyThreshold  *float64 `json:"buy_threshold,omitempty"`
	SellThreshold *float64 `json:"sell_threshold,omitempty"`
}

// Validate normalizes the config and rejects invalid values.
func (c *BotConfig) Validate() error {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.Symbol == "" {
		return &ValidationError{Message: "symbol is required"}
	}
	if c.WalletID == "" {
		return &ValidationError{Message: "wallet_id is required"}
	}
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = DefaultIntervalSeconds
	}
	if c.IntervalSeconds < MinIntervalSeconds {
		return &ValidationError{Message: fmt.Sprintf("interval_seconds must be at least %d", MinIntervalSeconds)}
	}
	if c.MaxAmount <= 0 {
		return &ValidationError{Message: "max_amount must be greater than zero"}
	}
	if c.Strategy == "" {
		c.Strategy = StrategySimple
	}
	if c.Strategy != StrategySimple && c.Strategy != StrategyGrid {
		return &ValidationError{Message: fmt.Sprintf("unknown strategy: %s", c.Strategy)}
	}
	if c.BuyThreshold != nil && *c.BuyThreshold <= 0 {
		return &ValidationError{Message: "buy_threshold must be greater than zero"}
	}
	if c.SellThreshold != nil && *c.SellThreshold <= 0 {
		return &ValidationError{Message: "sell_threshold must be greater than zero"}
	}
	return nil
}

// PriceSample is a single observation in the bot's rolling price window
type PriceSample struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceHistoryCap bounds the rolling price window. Oldest samples are
// evicted first once the cap is reached.
const PriceHistoryCap = 100

// BotSnapshot is the authoritative, atomically-readable state of the bot.
// Status readers always receive a deep copy.
type BotSnapshot struct {
	Status        BotStatus     `json:"status"`
	Config        *BotConfig    `json:"config,omitempty"`
	Symbol        string        `json:"symbol,omitempty"`
	WalletID      string        `json:"wallet_id,omitempty"`
	StartTime     *time.Time    `json:"start_time,omitempty"`
	LastPrice     float64       `json:"last_price,omitempty"`
	LastOperation string        `json:"last_operation,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	PriceHistory  []PriceSample `json:"price_history"`
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (s *BotSnapshot) Clone() BotSnapshot {
	out := *s
	if s.Config != nil {
		cfg := *s.Config
		out.Config = &cfg
	}
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	out.PriceHistory = make([]PriceSample, len(s.PriceHistory))
	copy(out.PriceHistory, s.PriceHistory)
	return out
}

// OrderRecord is the domain view of an exchange order, kept in the
// trading service's in-memory ledger.
type OrderRecord struct {
	OrderID                 string      `json:"order_id"`
	Symbol                  string      `json:"symbol"`
	Side                    Side        `json:"side"`
	Type                    OrderType   `json:"type"`
	Status                  OrderStatus `json:"status"`
	Quantity                float64     `json:"quantity"`
	Price                   *float64    `json:"price,omitempty"`
	ExecutedQuantity        float64     `json:"executed_quantity"`
	CumulativeQuoteQuantity float64     `json:"cumulative_quote_quantity"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               *time.Time  `json:"updated_at,omitempty"`
}

// AssetBalance is a point-in-time balance for one asset, derived from the
// exchange account and never stored.
type AssetBalance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// WalletInfo is the public projection of a stored wallet record. The
// encrypted credentials never leave the vault.
type WalletInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	UseTestnet  bool      `json:"use_testnet"`
	ConnectedAt time.Time `json:"connected_at"`
}

package strategy

import (
	"fmt"

	"botcore/internal/types"
)

// Default percentage thresholds for the simple momentum strategy
const (
	DefaultBuyThreshold  = 0.5
	DefaultSellThreshold = 1.0
)

// Evaluate is a pure decision function: given a bot's configuration, the
// previous and current observed prices, and the retained price history, it
// returns a trade signal plus a human-readable note describing the decision.
// It never touches the exchange or mutates anything.
func Evaluate(cfg types.BotConfig, lastPrice, currentPrice float64, history []types.PriceSample) (types.Signal, string) {
	if lastPrice == 0 {
		// First observation, nothing to compare against yet
		return types.SignalNone, fmt.Sprintf("Monitoring price: %.2f", currentPrice)
	}

	changePct := (currentPrice - lastPrice) / lastPrice * 100

	switch cfg.Strategy {
	case types.StrategyGrid:
		return evaluateGrid(currentPrice, changePct)
	default:
		return evaluateSimple(cfg, lastPrice, currentPrice, changePct)
	}
}

// evaluateSimple signals on short-term momentum: buy a dip, sell a rise
func evaluateSimple(cfg types.BotConfig, lastPrice, currentPrice, changePct float64) (types.Signal, string) {
	buyThreshold := DefaultBuyThreshold
	if cfg.BuyThreshold != nil {
		buyThreshold = *cfg.BuyThreshold
	}
	sellThreshold := DefaultSellThreshold
	if cfg.SellThreshold != nil {
		sellThreshold = *cfg.SellThreshold
	}

	if changePct <= -buyThreshold {
		return types.SignalBuy, fmt.Sprintf("Buy signal detected: price dropped %.2f%% (from %.2f to %.2f)", -changePct, lastPrice, currentPrice)
	}
	if changePct >= sellThreshold {
		return types.SignalSell, fmt.Sprintf("Sell signal detected: price rose %.2f%% (from %.2f to %.2f)", changePct, lastPrice, currentPrice)
	}
	return types.SignalNone, fmt.Sprintf("Analysis: price %.2f, change %.2f%%", currentPrice, changePct)
}

// evaluateGrid only reports movement for now. The grid leveling logic is
// TODO once per-level order tracking lands in the trading gateway.
func evaluateGrid(currentPrice, changePct float64) (types.Signal, string) {
	return types.SignalNone, fmt.Sprintf("Grid analysis: price %.2f, change %.2f%%", currentPrice, changePct)
}

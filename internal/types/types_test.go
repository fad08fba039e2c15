package types

import (
	"testing"
	"time"
)

func TestBotConfig_ValidateDefaults(t *testing.T) {
	cfg := BotConfig{
		Symbol:    " btcusdt ",
		WalletID:  "w1",
		MaxAmount: 100,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Symbol != "BTCUSDT" {
		t.Errorf("symbol should be trimmed and uppercased, got %q", cfg.Symbol)
	}
	if cfg.IntervalSeconds != DefaultIntervalSeconds {
		t.Errorf("interval should default to %d, got %d", DefaultIntervalSeconds, cfg.IntervalSeconds)
	}
	if cfg.Strategy != StrategySimple {
		t.Errorf("strategy should default to simple, got %s", cfg.Strategy)
	}
}

func TestBotConfig_ValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		cfg  BotConfig
	}{
		{"empty symbol", BotConfig{WalletID: "w1", MaxAmount: 1}},
		{"empty wallet", BotConfig{Symbol: "BTCUSDT", MaxAmount: 1}},
		{"interval too small", BotConfig{Symbol: "BTCUSDT", WalletID: "w1", MaxAmount: 1, IntervalSeconds: 3}},
		{"zero amount", BotConfig{Symbol: "BTCUSDT", WalletID: "w1"}},
		{"unknown strategy", BotConfig{Symbol: "BTCUSDT", WalletID: "w1", MaxAmount: 1, Strategy: "martingale"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); !IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestBotSnapshot_CloneIsDeep(t *testing.T) {
	now := time.Now().UTC()
	original := BotSnapshot{
		Status:       BotStatusRunning,
		Config:       &BotConfig{Symbol: "BTCUSDT"},
		StartTime:    &now,
		PriceHistory: []PriceSample{{Price: 1}},
	}

	clone := original.Clone()
	clone.Config.Symbol = "ETHUSDT"
	clone.PriceHistory[0].Price = 2

	if original.Config.Symbol != "BTCUSDT" {
		t.Error("clone shares the config pointer")
	}
	if original.PriceHistory[0].Price != 1 {
		t.Error("clone shares the price history backing array")
	}
}

package strategy

import (
	"strings"
	"testing"

	"botcore/internal/types"
)

func simpleConfig() types.BotConfig {
	return types.BotConfig{
		Symbol:   "BTCUSDT",
		WalletID: "w1",
		Strategy: types.StrategySimple,
	}
}

func TestEvaluate_FirstObservation(t *testing.T) {
	signal, note := Evaluate(simpleConfig(), 0, 50000, nil)
	if signal != types.SignalNone {
		t.Fatalf("first observation should not signal, got %s", signal)
	}
	if !strings.Contains(note, "Monitoring price") {
		t.Errorf("unexpected note: %s", note)
	}
}

func TestEvaluate_Simple_BuyOnDrop(t *testing.T) {
	// 100 -> 99 is a -1.0% move, past the default 0.5% buy threshold
	signal, note := Evaluate(simpleConfig(), 100, 99, nil)
	if signal != types.SignalBuy {
		t.Fatalf("expected BUY, got %s (%s)", signal, note)
	}
	if !strings.Contains(note, "Buy signal detected") {
		t.Errorf("unexpected note: %s", note)
	}
}

func TestEvaluate_Simple_SellOnRise(t *testing.T) {
	// 100 -> 101 is a +1.0% move, exactly at the default sell threshold
	signal, note := Evaluate(simpleConfig(), 100, 101, nil)
	if signal != types.SignalSell {
		t.Fatalf("expected SELL, got %s (%s)", signal, note)
	}
	if !strings.Contains(note, "Sell signal detected") {
		t.Errorf("unexpected note: %s", note)
	}
}

func TestEvaluate_Simple_HoldInsideThresholds(t *testing.T) {
	signal, note := Evaluate(simpleConfig(), 100, 100.3, nil)
	if signal != types.SignalNone {
		t.Fatalf("expected NONE, got %s (%s)", signal, note)
	}
	if !strings.Contains(note, "Analysis") {
		t.Errorf("unexpected note: %s", note)
	}
}

func TestEvaluate_Simple_CustomThresholds(t *testing.T) {
	buy := 2.0
	cfg := simpleConfig()
	cfg.BuyThreshold = &buy

	// -1% does not reach a 2% buy threshold
	signal, _ := Evaluate(cfg, 100, 99, nil)
	if signal != types.SignalNone {
		t.Fatalf("expected NONE with 2%% threshold, got %s", signal)
	}

	signal, _ = Evaluate(cfg, 100, 97, nil)
	if signal != types.SignalBuy {
		t.Fatalf("expected BUY on -3%% move, got %s", signal)
	}
}

func TestEvaluate_Grid_NeverSignals(t *testing.T) {
	cfg := simpleConfig()
	cfg.Strategy = types.StrategyGrid

	for _, current := range []float64{90, 99, 100, 101, 110} {
		signal, note := Evaluate(cfg, 100, current, nil)
		if signal != types.SignalNone {
			t.Fatalf("grid strategy signaled %s at price %.0f", signal, current)
		}
		if !strings.Contains(note, "Grid analysis") {
			t.Errorf("unexpected note: %s", note)
		}
	}
}

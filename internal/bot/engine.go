package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"botcore/internal/strategy"
	"botcore/internal/trading"
	"botcore/internal/types"
	"botcore/internal/vault"
)

// stopWait bounds how long Stop blocks for the loop to observe cancellation.
// The loop's own exit still finalizes state if the wait times out.
const stopWait = 30 * time.Second

// Engine owns the bot lifecycle: at most one background polling loop per
// process, an authoritative state snapshot, and the start/stop transitions.
// The loop fetches prices and runs the strategy; signals are advisory and
// never place orders on their own.
type Engine struct {
	logger  *slog.Logger
	vault   *vault.Vault
	trading *trading.Service

	// startMu serializes Start/Stop so two near-simultaneous starts can
	// never spawn two loops.
	startMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.RWMutex
	snapshot types.BotSnapshot
}

// NewEngine creates a stopped engine
func NewEngine(v *vault.Vault, t *trading.Service, logger *slog.Logger) *Engine {
	return &Engine{
		logger:  logger,
		vault:   v,
		trading: t,
		snapshot: types.BotSnapshot{
			Status:       types.BotStatusStopped,
			PriceHistory: []types.PriceSample{},
		},
	}
}

// loopAlive reports whether a background loop is currently running.
// Must be called with startMu held.
func (e *Engine) loopAlive() bool {
	if e.done == nil {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// Start validates the config, probes the symbol/credentials combination with
// a single price fetch, and launches the polling loop. It fails with
// ErrAlreadyRunning while a loop is alive and mutates no state on any
// failure path.
func (e *Engine) Start(ctx context.Context, cfg types.BotConfig) (types.BotSnapshot, error) {
	if err := cfg.Validate(); err != nil {
		return types.BotSnapshot{}, err
	}

	e.startMu.Lock()
	defer e.startMu.Unlock()

	if e.loopAlive() {
		return types.BotSnapshot{}, types.ErrAlreadyRunning
	}

	if _, err := e.vault.Get(cfg.WalletID); err != nil {
		return types.BotSnapshot{}, err
	}

	price, err := e.trading.GetPrice(ctx, cfg.Symbol)
	if err != nil {
		return types.BotSnapshot{}, &types.ValidationError{
			Message: fmt.Sprintf("cannot start bot for %s: %v", cfg.Symbol, err),
		}
	}

	now := time.Now().UTC()
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	e.mu.Lock()
	e.snapshot = types.BotSnapshot{
		Status:        types.BotStatusRunning,
		Config:        &cfg,
		Symbol:        cfg.Symbol,
		WalletID:      cfg.WalletID,
		StartTime:     &now,
		LastPrice:     price,
		LastOperation: fmt.Sprintf("Bot started for %s", cfg.Symbol),
		PriceHistory:  []types.PriceSample{},
	}
	snapshot := e.snapshot.Clone()
	e.mu.Unlock()

	e.cancel = cancel
	e.done = done
	go e.run(loopCtx, cfg, done)

	e.logger.Info("[ENGINE] Bot started",
		"symbol", cfg.Symbol,
		"wallet_id", cfg.WalletID,
		"strategy", cfg.Strategy,
		"interval_seconds", cfg.IntervalSeconds,
	)

	return snapshot, nil
}

// Stop requests cancellation and waits up to stopWait for the loop to exit.
// Stopping a bot that is not running is a no-op, reported as (false, nil).
func (e *Engine) Stop() (bool, error) {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	if !e.loopAlive() {
		return false, nil
	}

	e.cancel()
	select {
	case <-e.done:
	case <-time.After(stopWait):
		e.logger.Warn("[ENGINE] Timed out waiting for polling loop to exit")
	}

	e.mu.Lock()
	e.snapshot.Status = types.BotStatusStopped
	e.snapshot.LastOperation = "Stopped by user"
	e.mu.Unlock()

	e.logger.Info("[ENGINE] Bot stopped")
	return true, nil
}

// Status returns a deep copy of the current snapshot, safe to call
// concurrently with the loop's writes.
func (e *Engine) Status() types.BotSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot.Clone()
}

// run is the polling loop: fetch price, push to the bounded history, run the
// strategy, record the outcome, then wait interruptibly for the interval.
// Any gateway failure is terminal for this run.
func (e *Engine) run(ctx context.Context, cfg types.BotConfig, done chan struct{}) {
	defer close(done)

	interval := time.Duration(cfg.IntervalSeconds) * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		price, err := e.trading.GetPrice(ctx, cfg.Symbol)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.fail(err)
			return
		}

		e.mu.Lock()
		lastPrice := e.snapshot.LastPrice
		e.pushPrice(price)
		signal, note := strategy.Evaluate(cfg, lastPrice, price, e.snapshot.PriceHistory)
		e.snapshot.LastPrice = price
		e.snapshot.LastOperation = note
		e.mu.Unlock()

		if signal != types.SignalNone {
			e.logger.Info("[ENGINE] Strategy signal",
				"symbol", cfg.Symbol,
				"signal", signal,
				"price", price,
			)
		} else {
			e.logger.Debug("[ENGINE] Price observed", "symbol", cfg.Symbol, "price", price)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// pushPrice appends a sample, evicting the oldest once the cap is reached.
// Must be called with mu held.
func (e *Engine) pushPrice(price float64) {
	sample := types.PriceSample{Price: price, Timestamp: time.Now().UTC()}
	h := e.snapshot.PriceHistory
	if len(h) >= types.PriceHistoryCap {
		copy(h, h[1:])
		h[len(h)-1] = sample
	} else {
		h = append(h, sample)
	}
	e.snapshot.PriceHistory = h
}

// fail marks the run as terminally errored. An explicit Start is required
// to recover.
func (e *Engine) fail(err error) {
	e.mu.Lock()
	e.snapshot.Status = types.BotStatusError
	e.snapshot.ErrorMessage = err.Error()
	e.mu.Unlock()

	e.logger.Error("[ENGINE] Polling loop failed", "error", err)
}

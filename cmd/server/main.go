package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"botcore/internal/bot"
	"botcore/internal/crypto"
	"botcore/internal/exchange"
	"botcore/internal/receiver"
	"botcore/internal/trading"
	"botcore/internal/vault"
)

// Config holds the application configuration
type Config struct {
	Port     int
	MockMode bool
	LogLevel string
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Parse configuration
	cfg := loadConfig()

	// Setup logger
	logger := setupLogger(cfg.LogLevel)

	logger.Info("Starting BotCore Server",
		"mock_mode", cfg.MockMode,
		"port", cfg.Port,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Wallet encryption key: generated if absent, held only in the process
	// environment. Wallets connected before a restart cannot be decrypted
	// after it.
	encryptionKey, generated, err := crypto.LoadOrGenerateKey()
	if err != nil {
		logger.Error("Failed to load encryption key", "error", err)
		os.Exit(1)
	}
	if generated {
		logger.Warn("Generated ephemeral wallet encryption key; connected wallets will not survive a restart")
	}

	// Pick the exchange client factory
	var newClient exchange.Factory
	if cfg.MockMode {
		logger.Info("Running in MOCK MODE - no real trades will be executed")
		newClient = exchange.NewMockFactory(exchange.NewMockClient(logger))
	} else {
		newClient = exchange.NewFactory(logger)
	}

	// Wire the components
	credentialVault := vault.New(encryptionKey, newClient, logger)
	tradingService := trading.NewService(credentialVault, newClient, logger)
	engine := bot.NewEngine(credentialVault, tradingService, logger)

	// Initialize HTTP receiver
	httpReceiver := receiver.NewHTTPReceiver(cfg.Port, engine, credentialVault, tradingService, logger)

	if err := httpReceiver.Start(ctx); err != nil {
		logger.Error("Failed to start HTTP receiver", "error", err)
		os.Exit(1)
	}

	logger.Info("BotCore Server is running",
		"http_endpoint", "http://127.0.0.1:"+strconv.Itoa(cfg.Port),
	)
	logger.Info("Press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := <-sigChan
	logger.Info("Received shutdown signal", "signal", sig)

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop HTTP receiver first so no new commands arrive
	if err := httpReceiver.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP receiver", "error", err)
	}

	// Stop the bot loop if one is running
	if _, err := engine.Stop(); err != nil {
		logger.Error("Error stopping bot", "error", err)
	}

	logger.Info("BotCore Server stopped gracefully")
}

// loadConfig loads configuration from environment variables
func loadConfig() Config {
	port := 9090
	if p := os.Getenv("PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}

	mockMode := true // Default to mock mode for safety
	if m := os.Getenv("MOCK_MODE"); m != "" {
		mockMode = m == "true" || m == "1" || m == "yes"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return Config{
		Port:     port,
		MockMode: mockMode,
		LogLevel: logLevel,
	}
}

// setupLogger configures the structured logger
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

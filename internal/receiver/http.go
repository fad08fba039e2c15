package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"botcore/internal/bot"
	"botcore/internal/trading"
	"botcore/internal/types"
	"botcore/internal/vault"
)

// ConnectWalletRequest represents the incoming wallet connection body
type ConnectWalletRequest struct {
	APIKey     string `json:"api_key"`
	APISecret  string `json:"api_secret"`
	Name       string `json:"name,omitempty"`
	UseTestnet bool   `json:"use_testnet"`
}

// OrderRequest represents the incoming order placement body
type OrderRequest struct {
	Symbol   string   `json:"symbol"`
	Quantity float64  `json:"quantity"`
	Price    *float64 `json:"price,omitempty"`
	WalletID string   `json:"wallet_id"`
}

// HTTPReceiver exposes the bot control surface over HTTP
type HTTPReceiver struct {
	server  *http.Server
	logger  *slog.Logger
	port    int
	engine  *bot.Engine
	vault   *vault.Vault
	trading *trading.Service
}

// NewHTTPReceiver creates the HTTP control surface
func NewHTTPReceiver(port int, engine *bot.Engine, v *vault.Vault, t *trading.Service, logger *slog.Logger) *HTTPReceiver {
	return &HTTPReceiver{
		port:    port,
		logger:  logger,
		engine:  engine,
		vault:   v,
		trading: t,
	}
}

// Routes returns the receiver's handler with logging applied. Exposed so
// tests can drive the full surface without binding a port.
func (r *HTTPReceiver) Routes() http.Handler {
	mux := http.NewServeMux()

	// Bot lifecycle
	mux.HandleFunc("/api/bot/start", r.handleBotStart)
	mux.HandleFunc("/api/bot/stop", r.handleBotStop)
	mux.HandleFunc("/api/bot/status", r.handleBotStatus)

	// Wallet management
	mux.HandleFunc("/api/wallet/connect", r.handleWalletConnect)
	mux.HandleFunc("/api/wallet/list", r.handleWalletList)
	mux.HandleFunc("/api/wallet/", r.handleWalletBalance) // /api/wallet/{id}/balance

	// Trading
	mux.HandleFunc("/api/trading/buy", r.handleBuy)
	mux.HandleFunc("/api/trading/sell", r.handleSell)
	mux.HandleFunc("/api/trading/orders", r.handleOrders)
	mux.HandleFunc("/api/trading/order/", r.handleOrderByID) // GET/DELETE /api/trading/order/{id}

	// Market data
	mux.HandleFunc("/api/market/price/", r.handlePrice) // /api/market/price/{symbol}
	mux.HandleFunc("/api/market/symbols", r.handleSymbols)

	// Health and info endpoints
	mux.HandleFunc("/api/health", r.handleHealth)
	mux.HandleFunc("/", r.handleRoot)

	return r.loggingMiddleware(mux)
}

// Start starts the HTTP server
func (r *HTTPReceiver) Start(ctx context.Context) error {
	r.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", r.port),
		Handler:      r.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	r.logger.Info("[RECEIVER] Starting HTTP server",
		"port", r.port,
		"address", r.server.Addr,
	)

	// Run server in goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait briefly to check for immediate errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop gracefully shuts down the HTTP server
func (r *HTTPReceiver) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}

	r.logger.Info("[RECEIVER] Shutting down HTTP server")
	return r.server.Shutdown(ctx)
}

// loggingMiddleware logs all incoming requests
func (r *HTTPReceiver) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, req)

		r.logger.Info("[RECEIVER] Request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote", req.RemoteAddr,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// handleRoot handles requests to the root path
func (r *HTTPReceiver) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"service": "botcore",
		"version": "1.0.0",
		"endpoints": []string{
			"POST /api/bot/start - Start the trading bot",
			"POST /api/bot/stop - Stop the trading bot",
			"GET /api/bot/status - Get bot status",
			"POST /api/wallet/connect - Connect exchange credentials",
			"GET /api/wallet/list - List connected wallets",
			"GET /api/wallet/{id}/balance - Get wallet balances",
			"POST /api/trading/buy - Place a buy order",
			"POST /api/trading/sell - Place a sell order",
			"GET /api/trading/orders - List recent orders",
			"GET /api/trading/order/{id} - Get an order",
			"DELETE /api/trading/order/{id} - Cancel an order",
			"GET /api/market/price/{symbol} - Get current price",
			"GET /api/market/symbols - List tradable symbols",
			"GET /api/health - Health check",
		},
	})
}

// handleHealth handles health check requests
func (r *HTTPReceiver) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleBotStart handles POST /api/bot/start
func (r *HTTPReceiver) handleBotStart(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var cfg types.BotConfig
	if err := json.NewDecoder(req.Body).Decode(&cfg); err != nil {
		r.sendError(w, http.StatusBadRequest, "validation", fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	snapshot, err := r.engine.Start(req.Context(), cfg)
	if err != nil {
		r.sendDomainError(w, err)
		return
	}

	r.sendSuccess(w, fmt.Sprintf("Bot started for %s", snapshot.Symbol), snapshot)
}

// handleBotStop handles POST /api/bot/stop
func (r *HTTPReceiver) handleBotStop(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	stopped, err := r.engine.Stop()
	if err != nil {
		r.sendDomainError(w, err)
		return
	}

	message := "Bot stopped"
	if !stopped {
		message = "Bot was not running"
	}
	r.sendSuccess(w, message, map[string]interface{}{"stopped": stopped})
}

// handleBotStatus handles GET /api/bot/status
func (r *HTTPReceiver) handleBotStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	r.sendSuccess(w, "Bot status", r.engine.Status())
}

// handleWalletConnect handles POST /api/wallet/connect
func (r *HTTPReceiver) handleWalletConnect(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var connectReq ConnectWalletRequest
	if err := json.NewDecoder(req.Body).Decode(&connectReq); err != nil {
		r.sendError(w, http.StatusBadRequest, "validation", fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	info, err := r.vault.Connect(req.Context(), connectReq.APIKey, connectReq.APISecret, connectReq.Name, connectReq.UseTestnet)
	if err != nil {
		r.sendDomainError(w, err)
		return
	}

	r.sendSuccess(w, "Wallet connected", map[string]interface{}{
		"connected": true,
		"wallet_id": info.ID,
		"name":      info.Name,
	})
}

// handleWalletList handles GET /api/wallet/list
func (r *HTTPReceiver) handleWalletList(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	wallets := r.vault.List()
	r.sendSuccess(w, "Connected wallets", map[string]interface{}{
		"wallets": wallets,
		"count":   len(wallets),
	})
}

// handleWalletBalance handles GET /api/wallet/{id}/balance
func (r *HTTPReceiver) handleWalletBalance(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	rest := strings.TrimPrefix(req.URL.Path, "/api/wallet/")
	walletID, ok := strings.CutSuffix(rest, "/balance")
	if !ok || walletID == "" || strings.Contains(walletID, "/") {
		r.sendError(w, http.StatusBadRequest, "validation", "Wallet ID is required in path")
		return
	}

	balances, err := r.vault.Balances(req.Context(), walletID)
	if err != nil {
		r.sendDomainError(w, err)
		return
	}

	r.sendSuccess(w, "Wallet balances", map[string]interface{}{
		"wallet_id": walletID,
		"balances":  balances,
	})
}

// handleBuy handles POST /api/trading/buy
func (r *HTTPReceiver) handleBuy(w http.ResponseWriter, req *http.Request) {
	r.handlePlaceOrder(w, req, types.SideBuy)
}

// handleSell handles POST /api/trading/sell
func (r *HTTPReceiver) handleSell(w http.ResponseWriter, req *http.Request) {
	r.handlePlaceOrder(w, req, types.SideSell)
}

func (r *HTTPReceiver) handlePlaceOrder(w http.ResponseWriter, req *http.Request, side types.Side) {
	if req.Method != http.MethodPost {
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var orderReq OrderRequest
	if err := json.NewDecoder(req.Body).Decode(&orderReq); err != nil {
		r.sendError(w, http.StatusBadRequest, "validation", fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if orderReq.WalletID == "" {
		r.sendError(w, http.StatusBadRequest, "validation", "wallet_id is required")
		return
	}

	var (
		record types.OrderRecord
		err    error
	)
	if side == types.SideBuy {
		record, err = r.trading.PlaceBuyOrder(req.Context(), orderReq.Symbol, orderReq.Quantity, orderReq.Price, orderReq.WalletID)
	} else {
		record, err = r.trading.PlaceSellOrder(req.Context(), orderReq.Symbol, orderReq.Quantity, orderReq.Price, orderReq.WalletID)
	}
	if err != nil {
		r.sendDomainError(w, err)
		return
	}

	r.sendSuccess(w, "Order placed", record)
}

// handleOrders handles GET /api/trading/orders?wallet_id=xxx&symbol=yyy
func (r *HTTPReceiver) handleOrders(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	walletID := req.URL.Query().Get("wallet_id")
	if walletID == "" {
		r.sendError(w, http.StatusBadRequest, "validation", "wallet_id is required")
		return
	}
	symbol := req.URL.Query().Get("symbol")

	orders, err := r.trading.GetOrders(req.Context(), walletID, symbol)
	if err != nil {
		r.sendDomainError(w, err)
		return
	}

	r.sendSuccess(w, "Orders", map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

// handleOrderByID handles GET/DELETE /api/trading/order/{id}
func (r *HTTPReceiver) handleOrderByID(w http.ResponseWriter, req *http.Request) {
	orderID := strings.TrimPrefix(req.URL.Path, "/api/trading/order/")
	if orderID == "" || strings.Contains(orderID, "/") {
		r.sendError(w, http.StatusBadRequest, "validation", "Order ID is required in path")
		return
	}

	walletID := req.URL.Query().Get("wallet_id")
	if walletID == "" {
		r.sendError(w, http.StatusBadRequest, "validation", "wallet_id is required")
		return
	}
	symbol := req.URL.Query().Get("symbol")
	if symbol == "" {
		r.sendError(w, http.StatusBadRequest, "validation", "symbol is required")
		return
	}

	switch req.Method {
	case http.MethodGet:
		record, err := r.trading.GetOrder(req.Context(), orderID, walletID, symbol)
		if err != nil {
			r.sendDomainError(w, err)
			return
		}
		r.sendSuccess(w, "Order", record)
	case http.MethodDelete:
		record, err := r.trading.CancelOrder(req.Context(), orderID, walletID, symbol)
		if err != nil {
			r.sendDomainError(w, err)
			return
		}
		r.sendSuccess(w, "Order canceled", record)
	default:
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	}
}

// handlePrice handles GET /api/market/price/{symbol}
func (r *HTTPReceiver) handlePrice(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	symbol := strings.TrimPrefix(req.URL.Path, "/api/market/price/")
	if symbol == "" || strings.Contains(symbol, "/") {
		r.sendError(w, http.StatusBadRequest, "validation", "Symbol is required in path")
		return
	}

	price, err := r.trading.GetPrice(req.Context(), symbol)
	if err != nil {
		r.sendDomainError(w, err)
		return
	}

	r.sendSuccess(w, "Current price", map[string]interface{}{
		"symbol": strings.ToUpper(symbol),
		"price":  price,
	})
}

// handleSymbols handles GET /api/market/symbols
func (r *HTTPReceiver) handleSymbols(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	symbols, err := r.trading.GetAvailableSymbols(req.Context())
	if err != nil {
		r.sendDomainError(w, err)
		return
	}

	r.sendSuccess(w, "Tradable symbols", map[string]interface{}{
		"symbols": symbols,
		"count":   len(symbols),
	})
}

// sendDomainError maps a domain error onto a status code and a stable error
// kind. Unrecognized errors become a 500 with no internal detail beyond the
// message itself.
func (r *HTTPReceiver) sendDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrAlreadyRunning):
		r.sendError(w, http.StatusConflict, "already_running", err.Error())
	case types.IsValidation(err):
		r.sendError(w, http.StatusBadRequest, "validation", err.Error())
	case types.IsNotFound(err):
		r.sendError(w, http.StatusNotFound, "not_found", err.Error())
	case types.IsGateway(err):
		r.sendError(w, http.StatusBadRequest, "gateway", err.Error())
	case types.IsCredential(err):
		r.sendError(w, http.StatusInternalServerError, "credential", err.Error())
	default:
		r.sendError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

// sendError sends an error response
func (r *HTTPReceiver) sendError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   kind,
		"message": message,
	})
}

// sendSuccess sends a success response
func (r *HTTPReceiver) sendSuccess(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": message,
		"data":    data,
	})
}

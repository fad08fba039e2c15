package receiver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"botcore/internal/bot"
	"botcore/internal/crypto"
	"botcore/internal/exchange"
	"botcore/internal/trading"
	"botcore/internal/vault"
)

func newTestServer(t *testing.T, opts ...exchange.MockOption) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	mock := exchange.NewMockClient(logger, opts...)
	factory := exchange.NewMockFactory(mock)
	v := vault.New(key, factory, logger)
	svc := trading.NewService(v, factory, logger)
	engine := bot.NewEngine(v, svc, logger)

	r := NewHTTPReceiver(0, engine, v, svc, logger)
	server := httptest.NewServer(r.Routes())
	t.Cleanup(server.Close)
	return server
}

// doJSON issues a request and decodes the JSON envelope
func doJSON(t *testing.T, method, url string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var envelope map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp.StatusCode, envelope
}

// connectWallet connects a test wallet and returns its id
func connectWallet(t *testing.T, server *httptest.Server) string {
	t.Helper()
	status, envelope := doJSON(t, http.MethodPost, server.URL+"/api/wallet/connect", map[string]interface{}{
		"api_key":    "receiver-key-abcdefgh",
		"api_secret": "receiver-secret",
	})
	if status != http.StatusOK {
		t.Fatalf("wallet connect returned %d: %v", status, envelope)
	}
	data := envelope["data"].(map[string]interface{})
	return data["wallet_id"].(string)
}

func TestHTTP_Health(t *testing.T) {
	server := newTestServer(t)

	status, envelope := doJSON(t, http.MethodGet, server.URL+"/api/health", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if envelope["status"] != "healthy" {
		t.Errorf("unexpected health payload: %v", envelope)
	}
}

func TestHTTP_WalletConnectAndList(t *testing.T) {
	server := newTestServer(t)

	walletID := connectWallet(t, server)
	if walletID == "" {
		t.Fatal("wallet id should not be empty")
	}

	status, envelope := doJSON(t, http.MethodGet, server.URL+"/api/wallet/list", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	data := envelope["data"].(map[string]interface{})
	if data["count"].(float64) != 1 {
		t.Errorf("expected 1 wallet, got %v", data["count"])
	}
}

func TestHTTP_WalletBalance(t *testing.T) {
	server := newTestServer(t)
	walletID := connectWallet(t, server)

	status, envelope := doJSON(t, http.MethodGet, server.URL+"/api/wallet/"+walletID+"/balance", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, envelope)
	}

	status, envelope = doJSON(t, http.MethodGet, server.URL+"/api/wallet/missing/balance", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown wallet, got %d", status)
	}
	if envelope["error"] != "not_found" {
		t.Errorf("expected not_found kind, got %v", envelope["error"])
	}
}

func TestHTTP_BotLifecycle(t *testing.T) {
	server := newTestServer(t)
	walletID := connectWallet(t, server)

	config := map[string]interface{}{
		"symbol":           "BTCUSDT",
		"wallet_id":        walletID,
		"interval_seconds": 5,
		"max_amount":       100,
	}

	status, envelope := doJSON(t, http.MethodPost, server.URL+"/api/bot/start", config)
	if status != http.StatusOK {
		t.Fatalf("start returned %d: %v", status, envelope)
	}

	// A second start must be rejected with a conflict
	status, envelope = doJSON(t, http.MethodPost, server.URL+"/api/bot/start", config)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 on double start, got %d", status)
	}
	if envelope["error"] != "already_running" {
		t.Errorf("expected already_running kind, got %v", envelope["error"])
	}

	status, envelope = doJSON(t, http.MethodGet, server.URL+"/api/bot/status", nil)
	if status != http.StatusOK {
		t.Fatalf("status returned %d", status)
	}
	data := envelope["data"].(map[string]interface{})
	if data["status"] != "running" {
		t.Errorf("expected running, got %v", data["status"])
	}

	status, envelope = doJSON(t, http.MethodPost, server.URL+"/api/bot/stop", nil)
	if status != http.StatusOK {
		t.Fatalf("stop returned %d", status)
	}
	data = envelope["data"].(map[string]interface{})
	if data["stopped"] != true {
		t.Errorf("expected stopped=true, got %v", data["stopped"])
	}

	// Stopping again is a calm no-op
	status, envelope = doJSON(t, http.MethodPost, server.URL+"/api/bot/stop", nil)
	if status != http.StatusOK {
		t.Fatalf("second stop returned %d", status)
	}
	data = envelope["data"].(map[string]interface{})
	if data["stopped"] != false {
		t.Errorf("expected stopped=false, got %v", data["stopped"])
	}
}

func TestHTTP_BotStartValidation(t *testing.T) {
	server := newTestServer(t)
	walletID := connectWallet(t, server)

	status, envelope := doJSON(t, http.MethodPost, server.URL+"/api/bot/start", map[string]interface{}{
		"symbol":     "",
		"wallet_id":  walletID,
		"max_amount": 100,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty symbol, got %d", status)
	}
	if envelope["error"] != "validation" {
		t.Errorf("expected validation kind, got %v", envelope["error"])
	}

	status, envelope = doJSON(t, http.MethodPost, server.URL+"/api/bot/start", map[string]interface{}{
		"symbol":     "BTCUSDT",
		"wallet_id":  "missing",
		"max_amount": 100,
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown wallet, got %d", status)
	}
	if envelope["error"] != "not_found" {
		t.Errorf("expected not_found kind, got %v", envelope["error"])
	}
}

func TestHTTP_PlaceAndCancelOrder(t *testing.T) {
	server := newTestServer(t)
	walletID := connectWallet(t, server)

	status, envelope := doJSON(t, http.MethodPost, server.URL+"/api/trading/buy", map[string]interface{}{
		"symbol":    "BTCUSDT",
		"quantity":  0.5,
		"wallet_id": walletID,
	})
	if status != http.StatusOK {
		t.Fatalf("buy returned %d: %v", status, envelope)
	}
	record := envelope["data"].(map[string]interface{})
	if record["type"] != "MARKET" {
		t.Errorf("expected MARKET order, got %v", record["type"])
	}

	// Limit sell, then cancel it
	status, envelope = doJSON(t, http.MethodPost, server.URL+"/api/trading/sell", map[string]interface{}{
		"symbol":    "BTCUSDT",
		"quantity":  0.1,
		"price":     70000,
		"wallet_id": walletID,
	})
	if status != http.StatusOK {
		t.Fatalf("sell returned %d: %v", status, envelope)
	}
	record = envelope["data"].(map[string]interface{})
	orderID := record["order_id"].(string)

	status, envelope = doJSON(t, http.MethodDelete,
		server.URL+"/api/trading/order/"+orderID+"?wallet_id="+walletID+"&symbol=BTCUSDT", nil)
	if status != http.StatusOK {
		t.Fatalf("cancel returned %d: %v", status, envelope)
	}
	record = envelope["data"].(map[string]interface{})
	if record["status"] != "CANCELED" {
		t.Errorf("expected CANCELED, got %v", record["status"])
	}
}

func TestHTTP_OrdersRequireWallet(t *testing.T) {
	server := newTestServer(t)

	status, envelope := doJSON(t, http.MethodGet, server.URL+"/api/trading/orders", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 without wallet_id, got %d", status)
	}
	if envelope["error"] != "validation" {
		t.Errorf("expected validation kind, got %v", envelope["error"])
	}
}

func TestHTTP_MarketEndpoints(t *testing.T) {
	server := newTestServer(t)

	status, envelope := doJSON(t, http.MethodGet, server.URL+"/api/market/price/BTCUSDT", nil)
	if status != http.StatusOK {
		t.Fatalf("price returned %d", status)
	}
	data := envelope["data"].(map[string]interface{})
	if data["price"].(float64) <= 0 {
		t.Errorf("expected a positive price, got %v", data["price"])
	}

	status, envelope = doJSON(t, http.MethodGet, server.URL+"/api/market/price/NOPEUSDT", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown symbol, got %d", status)
	}
	if envelope["error"] != "gateway" {
		t.Errorf("expected gateway kind, got %v", envelope["error"])
	}

	status, envelope = doJSON(t, http.MethodGet, server.URL+"/api/market/symbols", nil)
	if status != http.StatusOK {
		t.Fatalf("symbols returned %d", status)
	}
	data = envelope["data"].(map[string]interface{})
	if data["count"].(float64) == 0 {
		t.Error("expected at least one tradable symbol")
	}
}

func TestHTTP_MethodNotAllowed(t *testing.T) {
	server := newTestServer(t)

	status, _ := doJSON(t, http.MethodGet, server.URL+"/api/bot/start", nil)
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", status)
	}
	status, _ = doJSON(t, http.MethodPost, server.URL+"/api/wallet/list", nil)
	if status != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", status)
	}
}

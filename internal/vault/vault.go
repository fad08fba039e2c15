package vault

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jxskiss/base62"

	"botcore/internal/crypto"
	"botcore/internal/exchange"
	"botcore/internal/types"
)

// walletRecord holds one stored credential set. Secrets are kept encrypted
// and only leave this package through ResolveCredentials.
type walletRecord struct {
	id                 string
	encryptedAPIKey    string
	encryptedAPISecret string
	name               string
	useTestnet         bool
	connectedAt        time.Time
}

// Vault stores exchange credentials encrypted under a process-wide key.
// All records live in memory only; they are gone when the process exits,
// and a generated key makes them undecryptable after a restart.
type Vault struct {
	logger        *slog.Logger
	newClient     exchange.Factory
	encryptionKey string

	mu      sync.RWMutex
	wallets map[string]*walletRecord
}

// New creates a credential vault. The factory is used for connectivity
// probes and balance queries.
func New(encryptionKey string, newClient exchange.Factory, logger *slog.Logger) *Vault {
	return &Vault{
		logger:        logger,
		newClient:     newClient,
		encryptionKey: encryptionKey,
		wallets:       make(map[string]*walletRecord),
	}
}

// deriveWalletID builds a deterministic id from the trailing fragment of the
// API key. Two keys sharing the same suffix collide; reconnecting the same
// key lands on the same id and overwrites. That is by design for this
// single-tenant surface.
func deriveWalletID(apiKey string) string {
	fragment := apiKey
	if len(fragment) > 8 {
		fragment = fragment[len(fragment)-8:]
	}
	return base62.EncodeToString([]byte(fragment))
}

// Connect verifies the credential pair with a live connectivity probe, then
// encrypts and stores it. An existing record under the same derived id is
// overwritten.
func (v *Vault) Connect(ctx context.Context, apiKey, apiSecret, name string, useTestnet bool) (types.WalletInfo, error) {
	if apiKey == "" || apiSecret == "" {
		return types.WalletInfo{}, &types.ValidationError{Message: "api_key and api_secret are required"}
	}

	client := v.newClient(apiKey, apiSecret, useTestnet)
	if err := client.Ping(ctx); err != nil {
		return types.WalletInfo{}, &types.GatewayError{Message: "failed to connect wallet", Err: err}
	}

	encryptedKey, err := crypto.EncryptToken(apiKey, v.encryptionKey)
	if err != nil {
		return types.WalletInfo{}, fmt.Errorf("failed to encrypt api key: %w", err)
	}
	encryptedSecret, err := crypto.EncryptToken(apiSecret, v.encryptionKey)
	if err != nil {
		return types.WalletInfo{}, fmt.Errorf("failed to encrypt api secret: %w", err)
	}

	id := deriveWalletID(apiKey)
	if name == "" {
		suffix := id
		if len(suffix) > 6 {
			suffix = suffix[:6]
		}
		name = "Wallet-" + suffix
	}

	record := &walletRecord{
		id:                 id,
		encryptedAPIKey:    encryptedKey,
		encryptedAPISecret: encryptedSecret,
		name:               name,
		useTestnet:         useTestnet,
		connectedAt:        time.Now().UTC(),
	}

	v.mu.Lock()
	_, existed := v.wallets[id]
	v.wallets[id] = record
	v.mu.Unlock()

	v.logger.Info("[VAULT] Wallet connected",
		"wallet_id", id,
		"name", name,
		"testnet", useTestnet,
		"overwritten", existed,
	)

	return record.info(), nil
}

// Get returns the public projection of one wallet
func (v *Vault) Get(id string) (types.WalletInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	record, ok := v.wallets[id]
	if !ok {
		return types.WalletInfo{}, &types.NotFoundError{Resource: "wallet", ID: id}
	}
	return record.info(), nil
}

// List returns projections of all stored wallets, oldest connection first
func (v *Vault) List() []types.WalletInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()

	infos := make([]types.WalletInfo, 0, len(v.wallets))
	for _, record := range v.wallets {
		infos = append(infos, record.info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// ResolveCredentials decrypts and returns the stored credential pair. It is
// the only way secrets leave the vault and must never be exposed over the
// control surface.
func (v *Vault) ResolveCredentials(id string) (apiKey, apiSecret string, useTestnet bool, err error) {
	v.mu.RLock()
	record, ok := v.wallets[id]
	v.mu.RUnlock()

	if !ok {
		return "", "", false, &types.NotFoundError{Resource: "wallet", ID: id}
	}

	apiKey, err = crypto.DecryptToken(record.encryptedAPIKey, v.encryptionKey)
	if err != nil {
		v.logger.Error("[VAULT] Failed to decrypt api key", "wallet_id", id)
		return "", "", false, &types.CredentialError{Message: "failed to decrypt wallet credentials"}
	}

	apiSecret, err = crypto.DecryptToken(record.encryptedAPISecret, v.encryptionKey)
	if err != nil {
		v.logger.Error("[VAULT] Failed to decrypt api secret", "wallet_id", id)
		return "", "", false, &types.CredentialError{Message: "failed to decrypt wallet credentials"}
	}

	return apiKey, apiSecret, record.useTestnet, nil
}

// Balances fetches the current account balances for a wallet
func (v *Vault) Balances(ctx context.Context, id string) ([]types.AssetBalance, error) {
	apiKey, apiSecret, useTestnet, err := v.ResolveCredentials(id)
	if err != nil {
		return nil, err
	}

	client := v.newClient(apiKey, apiSecret, useTestnet)
	balances, err := client.GetBalances(ctx)
	if err != nil {
		return nil, &types.GatewayError{Message: "failed to get wallet balance", Err: err}
	}
	return balances, nil
}

func (r *walletRecord) info() types.WalletInfo {
	return types.WalletInfo{
		ID:          r.id,
		Name:        r.name,
		UseTestnet:  r.useTestnet,
		ConnectedAt: r.connectedAt,
	}
}

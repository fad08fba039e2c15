package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Tokens are stored as iv:tag:encrypted (all hex-encoded), AES-256-GCM.

// EncryptToken encrypts a secret with the given hex-encoded 32-byte key.
func EncryptToken(plaintext string, encryptionKey string) (string, error) {
	gcm, err := newGCM(encryptionKey)
	if err != nil {
		return "", err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	// Seal appends the 16-byte tag to the ciphertext
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	tagSize := gcm.Overhead()
	encrypted := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(encrypted), nil
}

// DecryptToken decrypts a token produced by EncryptToken. A wrong or rotated
// key fails GCM authentication and returns an error, never garbage plaintext.
func DecryptToken(storedValue string, encryptionKey string) (string, error) {
	parts := strings.Split(storedValue, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid encrypted token format: expected iv:tag:encrypted")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("failed to decode IV: %w", err)
	}

	tag, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("failed to decode tag: %w", err)
	}

	encrypted, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	gcm, err := newGCM(encryptionKey)
	if err != nil {
		return "", err
	}

	// In GCM, the tag is appended to the ciphertext for decryption
	ciphertextWithTag := append(encrypted, tag...)

	plaintext, err := gcm.Open(nil, iv, ciphertextWithTag, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

// newGCM builds the AEAD from a hex-encoded key (64 hex chars = 32 bytes).
func newGCM(encryptionKey string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}

	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}

// GenerateKey returns a fresh hex-encoded 32-byte key.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// LoadOrGenerateKey reads the wallet encryption key from the environment,
// generating and exporting a fresh one when absent. A generated key lives
// only for this process: wallets encrypted under it become permanently
// undecryptable after a restart. That is the operational contract, not a bug.
func LoadOrGenerateKey() (key string, generated bool, err error) {
	if key := os.Getenv("WALLET_ENCRYPTION_KEY"); key != "" {
		return strings.TrimSpace(key), false, nil
	}

	key, err = GenerateKey()
	if err != nil {
		return "", false, err
	}
	os.Setenv("WALLET_ENCRYPTION_KEY", key)
	return key, true, nil
}

package crypto

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	plaintext := "binance_api_secret_123"
	stored, err := EncryptToken(plaintext, key)
	if err != nil {
		t.Fatalf("Encryption failed: %v", err)
	}

	// Stored format is iv:tag:encrypted
	if parts := strings.Split(stored, ":"); len(parts) != 3 {
		t.Fatalf("Expected iv:tag:encrypted format, got %q", stored)
	}

	decrypted, err := DecryptToken(stored, key)
	if err != nil {
		t.Fatalf("Decryption failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("Expected %q, got %q", plaintext, decrypted)
	}
}

func TestDecryptWithWrongKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	stored, err := EncryptToken("secret_token", key)
	if err != nil {
		t.Fatal(err)
	}

	otherKey, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	// GCM authentication must reject the rotated key, never return garbage
	if _, err := DecryptToken(stored, otherKey); err == nil {
		t.Fatal("Expected decryption failure with wrong key")
	}
}

func TestDecryptMalformedToken(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	cases := []string{
		"",
		"not-a-token",
		"aa:bb",
		"zz:zz:zz", // invalid hex
	}
	for _, c := range cases {
		if _, err := DecryptToken(c, key); err == nil {
			t.Errorf("Expected error for malformed token %q", c)
		}
	}
}

func TestInvalidKeyLength(t *testing.T) {
	if _, err := EncryptToken("data", "abcd"); err == nil {
		t.Fatal("Expected error for short key")
	}
}

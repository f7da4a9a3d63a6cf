package webhooks

import (
	"bytes"
	"strings"
	"testing"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestAESCipherRoundTrip(t *testing.T) {
	c, err := NewAESCipher(testKeyHex)
	if err != nil {
		t.Fatalf("NewAESCipher failed: %v", err)
	}

	secret := []byte("whsec_9f8e7d6c5b4a")
	sealed, err := c.Encrypt(secret)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Contains(sealed, secret) {
		t.Error("ciphertext contains plaintext")
	}

	opened, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(opened, secret) {
		t.Errorf("round trip mismatch: got %q, want %q", opened, secret)
	}
}

func TestAESCipherNonceUniqueness(t *testing.T) {
	c, err := NewAESCipher(testKeyHex)
	if err != nil {
		t.Fatalf("NewAESCipher failed: %v", err)
	}

	first, err := c.Encrypt([]byte("whsec_secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	second, err := c.Encrypt([]byte("whsec_secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Error("expected distinct ciphertexts for the same plaintext")
	}
}

func TestAESCipherRejectsTampering(t *testing.T) {
	c, err := NewAESCipher(testKeyHex)
	if err != nil {
		t.Fatalf("NewAESCipher failed: %v", err)
	}

	sealed, err := c.Encrypt([]byte("whsec_secret"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff

	if _, err := c.Decrypt(sealed); err == nil {
		t.Error("expected tampered ciphertext to fail")
	}

	if _, err := c.Decrypt([]byte("short")); err == nil {
		t.Error("expected truncated ciphertext to fail")
	}
}

func TestNewAESCipherKeyValidation(t *testing.T) {
	if _, err := NewAESCipher("not-hex"); err == nil {
		t.Error("expected error for non-hex key")
	}
	if _, err := NewAESCipher("deadbeef"); err == nil || !strings.Contains(err.Error(), "32 bytes") {
		t.Errorf("expected key length error, got %v", err)
	}
}

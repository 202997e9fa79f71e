// Package vault encrypts long-lived bot credentials at rest with AES-256-GCM.
//
// Every record gets its own random nonce, stored alongside the ciphertext as
// hex(nonce):hex(ciphertext):hex(tag). Repeated encryptions of the same
// plaintext therefore never produce the same stored value.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/Deduh/foodbot-back/internal/domain"
)

// Vault performs symmetric encryption of bot credentials.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a 32 byte AES key.
func New(key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("vault: key must be 32 bytes, got %d: %w", len(key), domain.ErrCrypto)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: cipher init: %w", domain.ErrCrypto)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: gcm init: %w", domain.ErrCrypto)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", domain.ErrCrypto)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - v.aead.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(ciphertext) + ":" + hex.EncodeToString(tag), nil
}

// Decrypt opens a stored value produced by Encrypt. Malformed input and tag
// mismatch both fail with a CryptoError; callers must treat that as
// "credential unusable" and degrade rather than crash.
func (v *Vault) Decrypt(stored string) (string, error) {
	parts := strings.Split(stored, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("vault: malformed ciphertext (%d parts): %w", len(parts), domain.ErrCrypto)
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != v.aead.NonceSize() {
		return "", fmt.Errorf("vault: malformed nonce: %w", domain.ErrCrypto)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("vault: malformed ciphertext: %w", domain.ErrCrypto)
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil || len(tag) != v.aead.Overhead() {
		return "", fmt.Errorf("vault: malformed auth tag: %w", domain.ErrCrypto)
	}

	plaintext, err := v.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("vault: open: %w", domain.ErrCrypto)
	}
	return string(plaintext), nil
}

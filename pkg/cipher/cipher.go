// Package cipher provides authenticated encryption for stored-event state.
// The wire form is nonce || ciphertext || tag; decode verifies the tag
// before returning plaintext and fails loudly on tamper.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/Unholster/eventsourcing/pkg/domain"
)

// Topic strings used by the CIPHER_TOPIC configuration input.
const (
	TopicAESGCM   = "aesgcm"
	TopicChaCha20 = "chacha20poly1305"
)

// GenerateKey returns a fresh random key of the requested byte length.
func GenerateKey(size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// AEAD wraps an authenticated cipher into the mapper's Encode/Decode pair.
// Safe for concurrent use.
type AEAD struct {
	aead stdcipher.AEAD
	name string
}

// NewAESGCM creates an AES-GCM cipher. The key must be 16, 24 or 32 bytes.
func NewAESGCM(key []byte) (*AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &AEAD{aead: aead, name: TopicAESGCM}, nil
}

// NewChaCha20Poly1305 creates a ChaCha20-Poly1305 cipher. The key must be
// 32 bytes. The wire shape is identical to AES-GCM: 12-byte nonce, 16-byte
// tag.
func NewChaCha20Poly1305(key []byte) (*AEAD, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305: %w", err)
	}
	return &AEAD{aead: aead, name: TopicChaCha20}, nil
}

// Name returns the cipher's topic string.
func (c *AEAD) Name() string {
	return c.name
}

// Encode encrypts plaintext as nonce || ciphertext || tag.
func (c *AEAD) Encode(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decode verifies and decrypts data produced by Encode. Truncated input or
// a failed tag check returns an integrity error.
func (c *AEAD) Decode(data []byte) ([]byte, error) {
	minLen := c.aead.NonceSize() + c.aead.Overhead()
	if len(data) < minLen {
		return nil, &domain.IntegrityError{Op: c.name + " decrypt", Err: fmt.Errorf("ciphertext shorter than %d bytes", minLen)}
	}
	nonce, ciphertext := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &domain.IntegrityError{Op: c.name + " decrypt", Err: err}
	}
	return plaintext, nil
}

// Package crypto provides the envelope-encryption boundary around the
// credential store's secret columns. Encryption and decryption happen
// only here; every other package sees plaintext in memory and opaque
// ciphertext at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	apperrors "github.com/ebaygate/ebaygate/internal/errors"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Box seals and opens secret strings with AES-256-GCM. The random
// nonce is prepended to the ciphertext and the whole value is base64
// encoded for TEXT column storage.
type Box struct {
	aead cipher.AEAD
}

// NewBox creates a Box from a raw 32-byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid encryption key length: got %d bytes, expected %d", len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &apperrors.ErrEncryption{Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &apperrors.ErrEncryption{Err: err}
	}
	return &Box{aead: aead}, nil
}

// NewBoxFromBase64 creates a Box from a base64-encoded key, the form
// the key takes in config files and environment variables.
func NewBoxFromBase64(encoded string) (*Box, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key from base64: %w", err)
	}
	return NewBox(key)
}

// GenerateKey produces a fresh random key, base64 encoded for config
// use.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", &apperrors.ErrEncryption{Err: err}
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Seal encrypts a plaintext secret. Empty input stays empty so
// optional columns round-trip without ciphertext noise.
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &apperrors.ErrEncryption{Err: err}
	}

	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Tampered ciphertext or a
// wrong key fails GCM tag verification.
func (b *Box) Open(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &apperrors.ErrDecryption{Err: err}
	}

	nonceSize := b.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", &apperrors.ErrDecryption{Err: fmt.Errorf("ciphertext shorter than nonce")}
	}

	plaintext, err := b.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", &apperrors.ErrDecryption{Err: err}
	}
	return string(plaintext), nil
}

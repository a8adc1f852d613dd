package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrNotSealed is returned by Open for values that were not produced by Seal
var ErrNotSealed = errors.New("value is not sealed")

// ParseKey decodes a hex encoded AES-128, AES-192 or AES-256 key
func ParseKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("key must be hex encoded: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, fmt.Errorf("key must decode to 16, 24 or 32 bytes, got %d", len(key))
}

// Sealer encrypts identity numbers at rest with AES-GCM.
// Sealed values are hex(nonce || ciphertext || tag).
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plain. The empty string stays empty.
func (s *Sealer) Seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(s.aead.Seal(nonce, nonce, []byte(plain), nil)), nil
}

// Open reverses Seal. Values that are not hex, too short, or fail
// authentication under this key yield ErrNotSealed.
func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	data, err := hex.DecodeString(sealed)
	if err != nil || len(data) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", ErrNotSealed
	}
	n := s.aead.NonceSize()
	plain, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotSealed, err)
	}
	return string(plain), nil
}

// MaskTaxID hides all but the last four characters of an identity number
func MaskTaxID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 4 {
		return id
	}
	return strings.Repeat("X", len(id)-4) + id[len(id)-4:]
}

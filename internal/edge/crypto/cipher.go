// Package crypto implements the authenticated-encryption envelope exchanged
// with the wearable. Payloads are JSON objects sealed with AES-256-GCM;
// nonce and ciphertext travel base64-encoded.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidKey means the configured key does not decode to exactly
	// 32 bytes. Fatal at construction: the process must not start without
	// a usable key.
	ErrInvalidKey = errors.New("aes key must decode to exactly 32 bytes")

	// ErrInvalidPayload covers every decrypt failure: bad base64, failed
	// tag verification, or plaintext that is not a JSON object. Callers
	// surface it as an authentication failure, never a crash.
	ErrInvalidPayload = errors.New("invalid encrypted payload")
)

// Envelope is the wire shape of an encrypted payload, in both directions.
type Envelope struct {
	NonceB64      string `json:"nonce_b64"`
	CiphertextB64 string `json:"ciphertext_b64"`
}

// Cipher seals and opens JSON payloads with a pre-shared 256-bit key.
// Stateless beyond the held key; safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a base64-encoded 32-byte key.
func NewCipher(keyB64 string) (*Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(keyB64))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Cipher{aead: aead}, nil
}

// NonceSize returns the required nonce length in bytes (12 for GCM).
func (c *Cipher) NonceSize() int { return c.aead.NonceSize() }

// Encrypt seals payload under nonce. The caller must supply a fresh random
// nonce per message: nonce uniqueness per (key, message) over the key's
// lifetime is a caller obligation and is not enforced here.
func (c *Cipher) Encrypt(payload map[string]any, nonce []byte) (Envelope, error) {
	if len(nonce) != c.aead.NonceSize() {
		return Envelope{}, fmt.Errorf("nonce must be %d bytes, got %d", c.aead.NonceSize(), len(nonce))
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}

	ciphertext := c.aead.Seal(nil, nonce, plaintext, nil)
	return Envelope{
		NonceB64:      base64.StdEncoding.EncodeToString(nonce),
		CiphertextB64: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens an envelope and returns the decoded JSON object. Any
// failure (decoding, authentication, or a plaintext that is not a JSON
// object) yields ErrInvalidPayload.
func (c *Cipher) Decrypt(nonceB64, ciphertextB64 string) (map[string]any, error) {
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrInvalidPayload, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrInvalidPayload, err)
	}
	if len(nonce) != c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length %d", ErrInvalidPayload, len(nonce))
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var decoded any
	if err := json.Unmarshal(plaintext, &decoded); err != nil {
		return nil, fmt.Errorf("%w: plaintext is not JSON", ErrInvalidPayload)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: plaintext must decode to a JSON object", ErrInvalidPayload)
	}
	return obj, nil
}

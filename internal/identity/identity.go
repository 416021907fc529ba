// Package identity provides stable, privacy-safe identifiers for subscriber
// email addresses: an irreversible SHA-256 hash used for lookup and dedup,
// and a reversible encrypted token embedded in unsubscribe links.
package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrInvalidInput is returned when an email is empty or whitespace-only.
	ErrInvalidInput = errors.New("identity: invalid input")

	// ErrInvalidToken is returned when an unsubscribe token is malformed,
	// truncated, or fails its integrity check. Callers map this to the
	// user-facing "invalid or expired unsubscribe link" message.
	ErrInvalidToken = errors.New("identity: invalid token")

	// ErrInvalidKey is returned when the token key is not 32 bytes.
	ErrInvalidKey = errors.New("identity: key must be 32 bytes")
)

// Normalize lowercases and trims an email address. All hashing and list
// comparisons go through the same normalization so casing never causes drift.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Hash returns the 64-character lowercase hex SHA-256 digest of the
// normalized email. Deterministic: the same address always maps to the
// same digest regardless of casing or surrounding whitespace.
func Hash(email string) (string, error) {
	normalized := Normalize(email)
	if normalized == "" {
		return "", fmt.Errorf("%w: empty email", ErrInvalidInput)
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), nil
}

// TokenCodec mints and consumes the encrypted unsubscribe-link tokens.
// Tokens are AES-256-GCM sealed and base64 URL-encoded: opaque, URL-safe,
// and tamper-evident. They are never persisted; minted at send time and
// consumed at click time.
type TokenCodec struct {
	aead cipher.AEAD
}

// NewTokenCodec creates a codec from a 32-byte key.
func NewTokenCodec(key []byte) (*TokenCodec, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &TokenCodec{aead: aead}, nil
}

// NewTokenCodecFromHex creates a codec from a hex-encoded 32-byte key,
// the form the key takes in configuration.
func NewTokenCodecFromHex(hexKey string) (*TokenCodec, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("%w: not valid hex", ErrInvalidKey)
	}
	return NewTokenCodec(key)
}

// Encrypt seals an email address into an opaque URL-safe token.
// The random nonce is prepended to the ciphertext before encoding.
func (c *TokenCodec) Encrypt(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("%w: empty email", ErrInvalidInput)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(email), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt recovers the exact original email from a token. Any malformed,
// truncated, or tampered token yields ErrInvalidToken; decryption failures
// are never distinguishable to a caller beyond that sentinel.
func (c *TokenCodec) Decrypt(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding", ErrInvalidToken)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+1 {
		return "", fmt.Errorf("%w: truncated", ErrInvalidToken)
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: integrity check failed", ErrInvalidToken)
	}

	return string(plaintext), nil
}

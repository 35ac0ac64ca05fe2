package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const (
	// MinBytes is the smallest accepted token size (128 bits).
	MinBytes = 16
	// DefaultBytes is the size used when callers pass 0.
	DefaultBytes = 32
)

// New returns a base64url token of nBytes random bytes.
func New(nBytes int) (string, error) {
	if nBytes == 0 {
		nBytes = DefaultBytes
	}
	if nBytes < MinBytes {
		return "", ErrTooShort
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Normalize trims s and rejects values that could not have come from New.
func Normalize(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrMalformed
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", ErrMalformed
	}
	if len(b) < MinBytes {
		return "", ErrTooShort
	}
	return s, nil
}

// Fingerprint returns a short SHA-256 hex prefix of s, safe for logs.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}

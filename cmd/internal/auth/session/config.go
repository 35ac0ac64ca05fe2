package session

import (
	"strings"
	"time"
)

const minSecretBytes = 32

// Config defines runtime configuration for session tokens.
type Config struct {
	// Issuer is the value set in the "iss" claim.
	Issuer string

	// Secret is the HMAC key. It must be at least 32 bytes.
	Secret string

	// TTL is the lifetime of issued tokens.
	TTL time.Duration

	// ClockSkew is the leeway applied to time-based claims.
	ClockSkew time.Duration

	// CookieName is the cookie consulted when no Authorization header is present.
	CookieName string
}

// DefaultConfig returns defaults matching the web client: a seven-day
// token in the "sid" cookie. Secret has no default.
func DefaultConfig() Config {
	return Config{
		Issuer:     "tasklist",
		TTL:        7 * 24 * time.Hour,
		ClockSkew:  30 * time.Second,
		CookieName: "sid",
	}
}

// Validate reports ErrConfig for unusable settings.
func (c Config) Validate() error {
	if len(c.Secret) < minSecretBytes {
		return ErrConfig
	}
	if strings.TrimSpace(c.Issuer) == "" || strings.TrimSpace(c.CookieName) == "" {
		return ErrConfig
	}
	if c.TTL <= 0 || c.ClockSkew < 0 {
		return ErrConfig
	}
	return nil
}

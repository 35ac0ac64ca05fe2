package app

import (
	"errors"
	"fmt"
)

// ValidateSecurityConfig enforces the session policy at startup.
// Fail-fast: the server never runs with a guessable signing key.
func ValidateSecurityConfig(cfg Config) error {
	if cfg.SessionSecret == "" {
		return errors.New("security policy: TASKLIST_SESSION_SECRET is required")
	}
	if err := cfg.SessionConfig().Validate(); err != nil {
		return fmt.Errorf("security policy: session config (secret must be at least 32 bytes): %w", err)
	}
	if cfg.Environment == "production" && !cfg.CookieSecure {
		return errors.New("security policy: TASKLIST_COOKIE_SECURE must be true in production")
	}
	return nil
}

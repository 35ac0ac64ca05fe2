package api

import (
	"net/http"
	"time"
)

// Config controls HTTP adapter limits and cookie attributes.
type Config struct {
	MaxBodyBytes int64

	// TrustProxy makes X-Forwarded-For / X-Real-IP the client address for
	// rate limiting. Enable only behind a proxy that overwrites them.
	TrustProxy bool

	// JoinMax accepted POST /join attempts per client IP within JoinWindow.
	JoinMax    int
	JoinWindow time.Duration

	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   1 << 20, // 1 MiB
		JoinMax:        10,
		JoinWindow:     time.Minute,
		CookiePath:     "/",
		CookieSecure:   true,
		CookieSameSite: http.SameSiteLaxMode,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.JoinMax <= 0 {
		c.JoinMax = def.JoinMax
	}
	if c.JoinWindow <= 0 {
		c.JoinWindow = def.JoinWindow
	}
	if c.CookiePath == "" {
		c.CookiePath = def.CookiePath
	}
	if c.CookieSameSite == 0 {
		c.CookieSameSite = def.CookieSameSite
	}
	return c
}

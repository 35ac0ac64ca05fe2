package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tasklist/cmd/internal/api"
	"tasklist/cmd/internal/auth/session"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string `env:"TASKLIST_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel  string `env:"TASKLIST_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TASKLIST_LOG_FORMAT" envDefault:"json"`
	LogColor  bool   `env:"TASKLIST_LOG_COLOR" envDefault:"false"`

	ReadHeaderTimeout time.Duration `env:"TASKLIST_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"TASKLIST_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"TASKLIST_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"TASKLIST_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout   time.Duration `env:"TASKLIST_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxHeaderBytes    int           `env:"TASKLIST_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`
	MaxBodyBytes      int64         `env:"TASKLIST_HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
	TrustProxy        bool          `env:"TASKLIST_HTTP_TRUST_PROXY" envDefault:"false"`

	// StoreDriver is one of memory, sqlite, postgres.
	StoreDriver       string        `env:"TASKLIST_STORE" envDefault:"memory"`
	DatabaseURL       string        `env:"TASKLIST_DATABASE_URL"`
	DBSchema          string        `env:"TASKLIST_DB_SCHEMA" envDefault:"tasklist"`
	DBMaxConns        int32         `env:"TASKLIST_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns        int32         `env:"TASKLIST_DB_MIN_CONNS" envDefault:"0"`
	DBMaxConnIdle     time.Duration `env:"TASKLIST_DB_MAX_CONN_IDLE" envDefault:"5m"`
	DBMaxConnLifetime time.Duration `env:"TASKLIST_DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBConnectTimeout  time.Duration `env:"TASKLIST_DB_CONNECT_TIMEOUT" envDefault:"3s"`
	SQLitePath        string        `env:"TASKLIST_SQLITE_PATH" envDefault:"tasklist.db"`
	AutoMigrate       bool          `env:"TASKLIST_AUTO_MIGRATE" envDefault:"true"`

	// RedisURL enables cross-instance fan-out of the live feed.
	RedisURL           string `env:"TASKLIST_REDIS_URL"`
	RedisChannelPrefix string `env:"TASKLIST_REDIS_CHANNEL_PREFIX" envDefault:"tasklist:events:"`

	SessionSecret string        `env:"TASKLIST_SESSION_SECRET"`
	SessionIssuer string        `env:"TASKLIST_SESSION_ISSUER" envDefault:"tasklist"`
	SessionTTL    time.Duration `env:"TASKLIST_SESSION_TTL" envDefault:"168h"`
	SessionCookie string        `env:"TASKLIST_SESSION_COOKIE" envDefault:"sid"`
	CookieDomain  string        `env:"TASKLIST_COOKIE_DOMAIN"`
	CookieSecure  bool          `env:"TASKLIST_COOKIE_SECURE" envDefault:"true"`

	JoinRateMax    int           `env:"TASKLIST_JOIN_RATE_MAX" envDefault:"10"`
	JoinRateWindow time.Duration `env:"TASKLIST_JOIN_RATE_WINDOW" envDefault:"1m"`

	CORSAllowedOrigins   []string `env:"TASKLIST_CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool     `env:"TASKLIST_CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	CORSMaxAgeSeconds    int      `env:"TASKLIST_CORS_MAX_AGE_SECONDS" envDefault:"600"`

	WSAllowedOrigins []string `env:"TASKLIST_WS_ALLOWED_ORIGINS" envSeparator:","`
	WSOriginRequired bool     `env:"TASKLIST_WS_ORIGIN_REQUIRED" envDefault:"false"`

	// Timezone interprets due dates written without an offset.
	Timezone string `env:"TASKLIST_TIMEZONE" envDefault:"UTC"`

	SentryDSN   string `env:"TASKLIST_SENTRY_DSN"`
	Environment string `env:"TASKLIST_ENV" envDefault:"development"`
}

// LoadConfig reads .env files (when present) and the environment.
func LoadConfig(files ...string) (Config, error) {
	var cfg Config
	if err := loadEnv(&cfg, files...); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.CORSAllowedOrigins = trimList(c.CORSAllowedOrigins)
	c.WSAllowedOrigins = trimList(c.WSAllowedOrigins)
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("config: TASKLIST_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	switch c.LogFormat {
	case "json", "pretty", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	return nil
}

// Location returns the configured timezone, UTC when unset.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SessionConfig derives the session token settings.
func (c Config) SessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.Secret = c.SessionSecret
	if c.SessionIssuer != "" {
		sc.Issuer = c.SessionIssuer
	}
	if c.SessionTTL > 0 {
		sc.TTL = c.SessionTTL
	}
	if c.SessionCookie != "" {
		sc.CookieName = c.SessionCookie
	}
	return sc
}

// APIConfig derives the HTTP adapter settings.
func (c Config) APIConfig() api.Config {
	ac := api.DefaultConfig()
	ac.MaxBodyBytes = c.MaxBodyBytes
	ac.TrustProxy = c.TrustProxy
	ac.JoinMax = c.JoinRateMax
	ac.JoinWindow = c.JoinRateWindow
	ac.CookieDomain = c.CookieDomain
	ac.CookieSecure = c.CookieSecure
	ac.CookieSameSite = http.SameSiteLaxMode
	return ac
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

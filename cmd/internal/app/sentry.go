package app

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryFlushTimeout = 2 * time.Second

// initSentry configures error reporting when a DSN is set. The returned
// flush is always safe to call.
func initSentry(cfg Config, log Logger) (flush func(), err error) {
	if cfg.SentryDSN == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		AttachStacktrace: true,
	}); err != nil {
		return func() {}, err
	}
	log.Info("sentry.enabled", "environment", cfg.Environment)
	return func() { sentry.Flush(sentryFlushTimeout) }, nil
}

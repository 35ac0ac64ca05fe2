// Package app wires the tracker server runtime: config, logging, storage,
// HTTP routes, the live activity feed, and error reporting.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"tasklist/cmd/identity"
	"tasklist/cmd/internal/activity"
	"tasklist/cmd/internal/api"
	"tasklist/cmd/internal/auth/session"
	"tasklist/cmd/internal/authz"
	"tasklist/cmd/internal/invite"
	"tasklist/cmd/internal/lists"
	"tasklist/cmd/internal/membership"
	"tasklist/cmd/internal/metrics"
	"tasklist/cmd/internal/realtime"
	"tasklist/cmd/internal/task"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/redis/go-redis/v9"
)

// App is the server runtime: it owns the store, the feed broker, and the
// HTTP handler chain.
type App struct {
	cfg Config
	log Logger

	store   storeHandle
	metrics *metrics.Metrics
	hub     *realtime.Hub

	redis  *redis.Client
	broker *realtime.RedisBroker

	handler http.Handler
	flush   func()
}

// New constructs a fully wired App from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (_ *App, err error) {
	if log == nil {
		log = NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.LogColor, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}
	sessions, err := session.NewManager(cfg.SessionConfig())
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, metrics: metrics.New(), hub: realtime.NewHub(log), flush: func() {}}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if a.flush, err = initSentry(cfg, log); err != nil {
		return nil, err
	}
	if a.store, err = openStore(ctx, cfg, log); err != nil {
		return nil, err
	}
	st := a.store.Store

	var pub activity.Publisher = a.hub
	if cfg.RedisURL != "" {
		if a.redis, err = newRedisClient(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
		a.broker, err = realtime.NewRedisBroker(a.redis, a.hub, log, realtime.WithChannelPrefix(cfg.RedisChannelPrefix))
		if err != nil {
			return nil, err
		}
		pub = a.broker
		log.Info("feed.broker.redis")
	}

	engine := authz.NewEngine(a.metrics)
	events := activity.New(st,
		activity.WithPublisher(pub),
		activity.WithMetrics(a.metrics),
		activity.WithLogger(log),
		activity.WithAuthorizer(engine),
	)
	ids, err := identity.NewService(st)
	if err != nil {
		return nil, err
	}
	invites, err := invite.NewService(st, events, invite.WithAuthorizer(engine), invite.WithLogger(log))
	if err != nil {
		return nil, err
	}

	feed, err := realtime.NewGateway(log, a.hub, realtime.GatewayConfig{
		Authenticate: sessions.Authenticate,
		Authorize: func(ctx context.Context, userID, listID string) error {
			_, err := engine.Authorize(ctx, st, userID, listID, authz.ActionViewHistory, nil)
			return err
		},
		Metrics:        a.metrics,
		OriginRequired: cfg.WSOriginRequired,
		AllowedOrigins: cfg.WSAllowedOrigins,
	})
	if err != nil {
		return nil, err
	}

	h, err := api.NewHandler(log, api.Services{
		Identity: ids,
		Lists:    lists.NewService(st, events, lists.WithAuthorizer(engine)),
		Members:  membership.NewService(st, events, membership.WithAuthorizer(engine)),
		Invites:  invites,
		Tasks:    task.NewService(st, events, task.WithAuthorizer(engine), task.WithLocation(cfg.Location())),
		Activity: events,
		Sessions: sessions,
	}, cfg.APIConfig(), api.WithMetrics(a.metrics), api.WithFeed(feed))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, st, a.metrics, h)

	var chain http.Handler = WithSecurityHeaders(mux)
	chain = WithCORS(chain, cfg, log)
	chain = WithRequestLogging(chain, log, a.metrics)
	chain = WithRecover(chain, log)
	a.handler = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(chain)

	return a, nil
}

// Handler returns the full HTTP handler chain.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if a.broker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.broker.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "store", a.cfg.StoreDriver, "redis", a.broker != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case runErr = <-errCh:
		a.log.Error("server.fail", "err", runErr)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		if runErr == nil {
			runErr = err
		}
	}
	cancel()
	wg.Wait()

	a.log.Info("server.stopped")
	return runErr
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
	}
	if a.store.Store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error("store.close.fail", "err", err)
		}
	}
	if a.flush != nil {
		a.flush()
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

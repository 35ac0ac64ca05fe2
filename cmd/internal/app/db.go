package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "tasklist"

// poolConfig applies the TASKLIST_DB_* settings on top of the database URL.
// Pool sizes from the environment override pool_* URL parameters.
func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns > 0 {
		pcfg.MinConns = min(cfg.DBMinConns, pcfg.MaxConns)
	}
	if cfg.DBMaxConnIdle > 0 {
		pcfg.MaxConnIdleTime = cfg.DBMaxConnIdle
	}
	if cfg.DBMaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.DBMaxConnLifetime
	}
	// shows up in pg_stat_activity unless the URL names one
	if pcfg.ConnConfig.RuntimeParams["application_name"] == "" {
		pcfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return pcfg, nil
}

// openPool connects the tracker's pool and waits up to DBConnectTimeout
// for the server to answer. Migrations are applied by the caller.
func openPool(ctx context.Context, cfg Config, log Logger) (*pgxpool.Pool, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := pingPool(ctx, pool, nonZeroDuration(cfg.DBConnectTimeout, 3*time.Second)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info("db.pool.ready", "max_conns", pcfg.MaxConns, "min_conns", pcfg.MinConns, "schema", cfg.DBSchema)
	return pool, nil
}

func pingPool(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return pool.Ping(ctx)
}

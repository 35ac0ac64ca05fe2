package app

import (
	"context"
	"fmt"

	"tasklist/cmd/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
)

// storeHandle pairs a Store with the resources the app owns for it.
type storeHandle struct {
	store.Store
	pool *pgxpool.Pool
}

// Close releases the store, then the pool it runs on.
func (h storeHandle) Close() error {
	err := h.Store.Close()
	if h.pool != nil {
		h.pool.Close()
	}
	return err
}

// openStore selects the persistence driver from cfg.
//
// Ownership model:
// - app owns pool lifecycle
// - PostgresStore.Close() is a no-op
func openStore(ctx context.Context, cfg Config, log Logger) (storeHandle, error) {
	switch cfg.StoreDriver {
	case StoreSQLite:
		st, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return storeHandle{}, err
		}
		log.Info("store.enabled.sqlite", "path", cfg.SQLitePath)
		return storeHandle{Store: st}, nil

	case StorePostgres:
		pool, err := openPool(ctx, cfg, log)
		if err != nil {
			return storeHandle{}, fmt.Errorf("postgres: %w", err)
		}
		if cfg.AutoMigrate {
			if err := store.MigratePostgres(ctx, pool, cfg.DBSchema); err != nil {
				pool.Close()
				return storeHandle{}, fmt.Errorf("migrate: %w", err)
			}
		}
		st, err := store.NewPostgresStore(pool, store.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return storeHandle{}, err
		}
		log.Info("store.enabled.postgres", "schema", cfg.DBSchema, "auto_migrate", cfg.AutoMigrate)
		return storeHandle{Store: st, pool: pool}, nil

	default:
		log.Info("store.enabled.memory")
		return storeHandle{Store: store.NewMemoryStore()}, nil
	}
}

// Migrate applies schema migrations for the configured driver and returns.
// The memory store has nothing to migrate.
func Migrate(ctx context.Context, cfg Config, log Logger) error {
	switch cfg.StoreDriver {
	case StoreSQLite:
		st, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		log.Info("migrate.done", "driver", StoreSQLite, "path", cfg.SQLitePath)
		return st.Close()
	case StorePostgres:
		pool, err := openPool(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := store.MigratePostgres(ctx, pool, cfg.DBSchema); err != nil {
			return err
		}
		log.Info("migrate.done", "driver", StorePostgres, "schema", cfg.DBSchema)
		return nil
	default:
		log.Info("migrate.skip", "driver", cfg.StoreDriver)
		return nil
	}
}

// OpenStore opens the configured store for one-off commands. The caller
// closes it.
func OpenStore(ctx context.Context, cfg Config, log Logger) (store.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return h, nil
}

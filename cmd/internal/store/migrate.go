package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"tasklist/cmd/internal/store/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationTable = "schema_migrations"

// MigratePostgres applies the embedded PostgreSQL migrations to schema,
// creating the schema when missing. Each file is applied at most once.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if pool == nil {
		return ErrInvalidInput
	}
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return ErrInvalidInput
	}
	files, err := migrationFiles(migrations.Postgres, "postgres")
	if err != nil {
		return err
	}

	schemaIdent := pgx.Identifier{schema}.Sanitize()
	table := pgIdent(schema, migrationTable)
	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+schemaIdent); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS `+table+` (name TEXT PRIMARY KEY, applied_at BIGINT NOT NULL)`,
	); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		content, err := fs.ReadFile(migrations.Postgres, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		up := strings.ReplaceAll(extractUp(string(content)), "{{schema}}", schemaIdent)

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "migrate:"+schema); err != nil {
				return err
			}
			var found int
			err := tx.QueryRow(ctx, `SELECT 1 FROM `+table+` WHERE name = $1`, file).Scan(&found)
			if err == nil {
				return nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			if strings.TrimSpace(up) != "" {
				if _, err := tx.Exec(ctx, up); err != nil {
					return err
				}
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO `+table+` (name, applied_at) VALUES ($1, $2)`,
				file, time.Now().UTC().UnixMilli(),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

// MigrateSQLite applies the embedded SQLite migrations. Each file is applied at most once.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return ErrInvalidInput
	}
	files, err := migrationFiles(migrations.SQLite, "sqlite")
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS `+migrationTable+` (name TEXT PRIMARY KEY, applied_at INTEGER NOT NULL)`,
	); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		content, err := fs.ReadFile(migrations.SQLite, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		var found int
		err = db.QueryRowContext(ctx, `SELECT 1 FROM `+migrationTable+` WHERE name = ?`, file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if up := extractUp(string(content)); strings.TrimSpace(up) != "" {
			if _, err := tx.ExecContext(ctx, up); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("exec migration %s: %w", file, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func migrationFiles(fsys fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, path.Join(root, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// extractUp returns the SQL between "-- +migrate Up" and "-- +migrate Down".
func extractUp(content string) string {
	const upMarker, downMarker = "-- +migrate Up", "-- +migrate Down"
	up := strings.Index(content, upMarker)
	if up == -1 {
		return content
	}
	rest := content[up+len(upMarker):]
	if down := strings.Index(rest, downMarker); down != -1 {
		return rest[:down]
	}
	return rest
}

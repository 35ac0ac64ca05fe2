// Package migrations embeds the SQL schema for the database-backed stores.
package migrations

import "embed"

// Postgres holds PostgreSQL migrations. {{schema}} is replaced with the
// sanitized target schema before execution.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds SQLite migrations.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

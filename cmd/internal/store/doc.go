// Package store is the persistence boundary of the tracker.
//
// A Store exposes per-table upsert, lookup, filter, and delete operations
// plus Tx, which runs a function atomically. Tx accepts a lock key (usually
// a list id) so that check-then-act sequences on the same list serialize
// across goroutines and, for PostgreSQL, across processes.
//
// Backends: in-memory (tests, local runs), PostgreSQL (pgx), SQLite (modernc).
package store

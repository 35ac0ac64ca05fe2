package store

import (
	"context"

	"tasklist/cmd/internal/model"
)

// Queries is the row-level API shared by a Store and its transactions.
//
// Put* methods upsert by id. Lookups return ErrNotFound when no row matches.
// Uniqueness violations (user email, external auth id, membership pair,
// invite token) return ErrConflict. Slices are ordered by creation time,
// ties broken by insertion order.
type Queries interface {
	PutUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByExternalAuthID(ctx context.Context, subject string) (model.User, error)
	// GetUsers returns the users found among ids, keyed by id. Missing ids are omitted.
	GetUsers(ctx context.Context, ids []string) (map[string]model.User, error)

	PutList(ctx context.Context, l model.List) error
	GetList(ctx context.Context, id string) (model.List, error)
	// ListListsForUser returns the lists userID holds a membership on.
	ListListsForUser(ctx context.Context, userID string) ([]model.List, error)
	// DeleteList removes the list with its tasks, memberships, and invites.
	// Events of the list are kept.
	DeleteList(ctx context.Context, id string) error

	PutMembership(ctx context.Context, m model.Membership) error
	GetMembership(ctx context.Context, listID, userID string) (model.Membership, error)
	ListMemberships(ctx context.Context, listID string) ([]model.Membership, error)

	PutInvite(ctx context.Context, inv model.Invite) error
	GetInvite(ctx context.Context, id string) (model.Invite, error)
	GetInviteByToken(ctx context.Context, token string) (model.Invite, error)
	// FindPendingInvite returns the oldest pending invite of the list.
	FindPendingInvite(ctx context.Context, listID string) (model.Invite, error)

	PutTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (model.Task, error)
	ListTasks(ctx context.Context, listID string) ([]model.Task, error)
	// ListTasksForUser returns tasks of every list userID is a member of.
	ListTasksForUser(ctx context.Context, userID string) ([]model.Task, error)
	DeleteTask(ctx context.Context, id string) error

	// AppendEvent stores e and returns it with Seq assigned.
	AppendEvent(ctx context.Context, e model.Event) (model.Event, error)
	// PageEvents returns events of the list ordered by At descending (ties
	// in insertion order) starting at offset, plus the total count.
	PageEvents(ctx context.Context, listID string, offset, limit int) ([]model.Event, int, error)
}

// Store is a Queries backed by a database, with transactions.
type Store interface {
	Queries

	// Tx runs fn atomically. When lockKey is non-empty, concurrent Tx calls
	// with the same key are serialized. An error returned by fn rolls back.
	Tx(ctx context.Context, lockKey string, fn func(ctx context.Context, q Queries) error) error

	Ping(ctx context.Context) error
	Close() error
}

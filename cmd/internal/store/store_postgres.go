package store

import (
	"context"
	"errors"
	"strings"

	"tasklist/cmd/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore persists the tracker in PostgreSQL.
type PostgresStore struct {
	pgQueries
	pool *pgxpool.Pool
}

// PostgresOption configures PostgresStore.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "tasklist").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return ErrInvalidInput
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore. Call MigratePostgres first.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, pgQueries: pgQueries{db: pool, schema: "tasklist"}}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, ErrInvalidInput
	}
	return st, nil
}

// Tx runs fn in a transaction. A non-empty lockKey takes a transaction-scoped
// advisory lock so concurrent writers to the same list serialize across processes.
func (s *PostgresStore) Tx(ctx context.Context, lockKey string, fn func(ctx context.Context, q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if lockKey != "" {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
				return err
			}
		}
		return fn(ctx, pgQueries{db: tx, schema: s.schema})
	})
}

// DeleteList removes the list and its dependents in one transaction.
func (s *PostgresStore) DeleteList(ctx context.Context, id string) error {
	return s.Tx(ctx, id, func(ctx context.Context, q Queries) error {
		return q.DeleteList(ctx, id)
	})
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a noop; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// pgQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgQueries struct {
	db     pgQuerier
	schema string
}

func (q pgQueries) t(table string) string { return pgIdent(q.schema, table) }

func (q pgQueries) PutUser(ctx context.Context, u model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.ID == "" || u.Email == "" {
		return ErrInvalidInput
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO `+q.t("users")+` (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		    SET email = EXCLUDED.email,
		        name = EXCLUDED.name,
		        avatar = EXCLUDED.avatar,
		        external_auth_id = EXCLUDED.external_auth_id`,
		u.ID, u.Email, u.Name, u.Avatar, u.ExternalAuthID, u.CreatedAt,
	)
	return pgErr(err)
}

func (q pgQueries) GetUser(ctx context.Context, id string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, err := scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM `+q.t("users")+` WHERE id = $1`, id))
	return u, pgErr(err)
}

func (q pgQueries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, err := scanUser(q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+q.t("users")+` WHERE lower(email) = lower($1)`, email))
	return u, pgErr(err)
}

func (q pgQueries) GetUserByExternalAuthID(ctx context.Context, subject string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, err := scanUser(q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM `+q.t("users")+` WHERE external_auth_id = $1`, subject))
	return u, pgErr(err)
}

func (q pgQueries) GetUsers(ctx context.Context, ids []string) (map[string]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM `+q.t("users")+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users, err := scanAll(rows, scanUser)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (q pgQueries) PutList(ctx context.Context, l model.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.ID == "" || l.OwnerID == "" {
		return ErrInvalidInput
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO `+q.t("lists")+` (`+listColumns+`)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		    SET name = EXCLUDED.name,
		        color = EXCLUDED.color,
		        owner_id = EXCLUDED.owner_id`,
		l.ID, l.Name, l.Color, l.OwnerID, l.CreatedAt,
	)
	return pgErr(err)
}

func (q pgQueries) GetList(ctx context.Context, id string) (model.List, error) {
	if err := ctx.Err(); err != nil {
		return model.List{}, err
	}
	l, err := scanList(q.db.QueryRow(ctx, `SELECT `+listColumns+` FROM `+q.t("lists")+` WHERE id = $1`, id))
	return l, pgErr(err)
}

func (q pgQueries) ListListsForUser(ctx context.Context, userID string) ([]model.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := q.db.Query(ctx,
		`SELECT l.id, l.name, l.color, l.owner_id, l.created_at
		   FROM `+q.t("lists")+` l
		   JOIN `+q.t("memberships")+` m ON m.list_id = l.id
		  WHERE m.user_id = $1
		  ORDER BY l.created_at, l.id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanList)
}

func (q pgQueries) DeleteList(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx, `DELETE FROM `+q.t("lists")+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	for _, table := range []string{"tasks", "memberships", "invites"} {
		if _, err := q.db.Exec(ctx, `DELETE FROM `+q.t(table)+` WHERE list_id = $1`, id); err != nil {
			return err
		}
	}
	return nil
}

func (q pgQueries) PutMembership(ctx context.Context, m model.Membership) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ID == "" || m.ListID == "" || m.UserID == "" {
		return ErrInvalidInput
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO `+q.t("memberships")+` (`+membershipColumns+`)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role`,
		m.ID, m.ListID, m.UserID, string(m.Role), m.CreatedAt,
	)
	return pgErr(err)
}

func (q pgQueries) GetMembership(ctx context.Context, listID, userID string) (model.Membership, error) {
	if err := ctx.Err(); err != nil {
		return model.Membership{}, err
	}
	m, err := scanMembership(q.db.QueryRow(ctx,
		`SELECT `+membershipColumns+` FROM `+q.t("memberships")+` WHERE list_id = $1 AND user_id = $2`,
		listID, userID,
	))
	return m, pgErr(err)
}

func (q pgQueries) ListMemberships(ctx context.Context, listID string) ([]model.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := q.db.Query(ctx,
		`SELECT `+membershipColumns+` FROM `+q.t("memberships")+` WHERE list_id = $1 ORDER BY created_at, id`,
		listID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanMembership)
}

func (q pgQueries) PutInvite(ctx context.Context, inv model.Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if inv.ID == "" || inv.ListID == "" || inv.Token == "" {
		return ErrInvalidInput
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO `+q.t("invites")+` (`+inviteColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		    SET email = EXCLUDED.email,
		        status = EXCLUDED.status`,
		inv.ID, inv.ListID, inv.Email, inv.InvitedBy, inv.Token, string(inv.Status), inv.CreatedAt,
	)
	return pgErr(err)
}

func (q pgQueries) GetInvite(ctx context.Context, id string) (model.Invite, error) {
	if err := ctx.Err(); err != nil {
		return model.Invite{}, err
	}
	inv, err := scanInvite(q.db.QueryRow(ctx, `SELECT `+inviteColumns+` FROM `+q.t("invites")+` WHERE id = $1`, id))
	return inv, pgErr(err)
}

func (q pgQueries) GetInviteByToken(ctx context.Context, token string) (model.Invite, error) {
	if err := ctx.Err(); err != nil {
		return model.Invite{}, err
	}
	inv, err := scanInvite(q.db.QueryRow(ctx, `SELECT `+inviteColumns+` FROM `+q.t("invites")+` WHERE token = $1`, token))
	return inv, pgErr(err)
}

func (q pgQueries) FindPendingInvite(ctx context.Context, listID string) (model.Invite, error) {
	if err := ctx.Err(); err != nil {
		return model.Invite{}, err
	}
	inv, err := scanInvite(q.db.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM `+q.t("invites")+`
		  WHERE list_id = $1 AND status = 'pending'
		  ORDER BY created_at, id
		  LIMIT 1`,
		listID,
	))
	return inv, pgErr(err)
}

func (q pgQueries) PutTask(ctx context.Context, t model.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" || t.ListID == "" {
		return ErrInvalidInput
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO `+q.t("tasks")+` (`+taskColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE
		    SET title = EXCLUDED.title,
		        notes = EXCLUDED.notes,
		        due_at = EXCLUDED.due_at,
		        estimate_minutes = EXCLUDED.estimate_minutes,
		        priority = EXCLUDED.priority,
		        status = EXCLUDED.status,
		        completed_at = EXCLUDED.completed_at,
		        assignee_id = EXCLUDED.assignee_id`,
		t.ID, t.ListID, t.Title, t.Notes, t.DueAt, t.EstimateMinutes, t.Priority,
		string(t.Status), t.CreatedAt, t.CompletedAt, t.CreatedBy, t.AssigneeID,
	)
	return pgErr(err)
}

func (q pgQueries) GetTask(ctx context.Context, id string) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}
	t, err := scanTask(q.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM `+q.t("tasks")+` WHERE id = $1`, id))
	return t, pgErr(err)
}

func (q pgQueries) ListTasks(ctx context.Context, listID string) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := q.db.Query(ctx,
		`SELECT `+taskColumns+` FROM `+q.t("tasks")+` WHERE list_id = $1 ORDER BY created_at, id`,
		listID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanTask)
}

func (q pgQueries) ListTasksForUser(ctx context.Context, userID string) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := q.db.Query(ctx,
		`SELECT `+prefixed("t", taskColumns)+`
		   FROM `+q.t("tasks")+` t
		   JOIN `+q.t("memberships")+` m ON m.list_id = t.list_id
		  WHERE m.user_id = $1
		  ORDER BY t.created_at, t.id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanTask)
}

func (q pgQueries) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx, `DELETE FROM `+q.t("tasks")+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q pgQueries) AppendEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if err := ctx.Err(); err != nil {
		return model.Event{}, err
	}
	if err := validateEvent(e); err != nil {
		return model.Event{}, err
	}
	data, err := encodeEventData(e.Data)
	if err != nil {
		return model.Event{}, err
	}
	err = q.db.QueryRow(ctx,
		`INSERT INTO `+q.t("events")+` (id, list_id, type, at, actor_id, data)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		 RETURNING seq`,
		e.ID, e.ListID, string(e.Type), e.At, e.ActorID, data,
	).Scan(&e.Seq)
	if err != nil {
		return model.Event{}, pgErr(err)
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	return e, nil
}

func (q pgQueries) PageEvents(ctx context.Context, listID string, offset, limit int) ([]model.Event, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if offset < 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	var total int
	if err := q.db.QueryRow(ctx, `SELECT count(*) FROM `+q.t("events")+` WHERE list_id = $1`, listID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.db.Query(ctx,
		`SELECT `+eventColumns+` FROM `+q.t("events")+`
		  WHERE list_id = $1
		  ORDER BY at DESC, seq ASC
		  LIMIT $2 OFFSET $3`,
		listID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	events, err := scanAll(rows, scanEvent)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func pgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == pgUniqueViolation {
		return ErrConflict
	}
	return err
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

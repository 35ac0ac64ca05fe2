package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"tasklist/cmd/internal/model"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteStore persists the tracker in a single SQLite file.
//
// SQLite allows one writer at a time, so Tx serializes through a process
// mutex regardless of lock key.
type SQLiteStore struct {
	sqlQueries
	sqlDB *sql.DB
	txMu  sync.Mutex
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := MigrateSQLite(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB, sqlQueries: sqlQueries{db: sqlDB}}, nil
}

// Tx runs fn inside a database transaction.
func (s *SQLiteStore) Tx(ctx context.Context, _ string, fn func(ctx context.Context, q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, sqlQueries{db: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// DeleteList removes the list and its dependents in one transaction.
func (s *SQLiteStore) DeleteList(ctx context.Context, id string) error {
	return s.Tx(ctx, id, func(ctx context.Context, q Queries) error {
		return q.DeleteList(ctx, id)
	})
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlQueries struct {
	db sqlQuerier
}

func (q sqlQueries) PutUser(ctx context.Context, u model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.ID == "" || u.Email == "" {
		return ErrInvalidInput
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
		    SET email = excluded.email,
		        name = excluded.name,
		        avatar = excluded.avatar,
		        external_auth_id = excluded.external_auth_id`,
		u.ID, u.Email, u.Name, u.Avatar, u.ExternalAuthID, u.CreatedAt,
	)
	return sqliteErr(err)
}

func (q sqlQueries) GetUser(ctx context.Context, id string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, err := scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	return u, sqliteErr(err)
}

func (q sqlQueries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, err := scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email))
	return u, sqliteErr(err)
}

func (q sqlQueries) GetUserByExternalAuthID(ctx context.Context, subject string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, err := scanUser(q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE external_auth_id = ?`, subject))
	return u, sqliteErr(err)
}

func (q sqlQueries) GetUsers(ctx context.Context, ids []string) (map[string]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
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

func (q sqlQueries) PutList(ctx context.Context, l model.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.ID == "" || l.OwnerID == "" {
		return ErrInvalidInput
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO lists (`+listColumns+`)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
		    SET name = excluded.name,
		        color = excluded.color,
		        owner_id = excluded.owner_id`,
		l.ID, l.Name, l.Color, l.OwnerID, l.CreatedAt,
	)
	return sqliteErr(err)
}

func (q sqlQueries) GetList(ctx context.Context, id string) (model.List, error) {
	if err := ctx.Err(); err != nil {
		return model.List{}, err
	}
	l, err := scanList(q.db.QueryRowContext(ctx, `SELECT `+listColumns+` FROM lists WHERE id = ?`, id))
	return l, sqliteErr(err)
}

func (q sqlQueries) ListListsForUser(ctx context.Context, userID string) ([]model.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+prefixed("l", listColumns)+`
		   FROM lists l
		   JOIN memberships m ON m.list_id = l.id
		  WHERE m.user_id = ?
		  ORDER BY l.created_at, l.rowid`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanList)
}

func (q sqlQueries) DeleteList(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	for _, table := range []string{"tasks", "memberships", "invites"} {
		if _, err := q.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE list_id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

func (q sqlQueries) PutMembership(ctx context.Context, m model.Membership) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ID == "" || m.ListID == "" || m.UserID == "" {
		return ErrInvalidInput
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO memberships (`+membershipColumns+`)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET role = excluded.role`,
		m.ID, m.ListID, m.UserID, string(m.Role), m.CreatedAt,
	)
	return sqliteErr(err)
}

func (q sqlQueries) GetMembership(ctx context.Context, listID, userID string) (model.Membership, error) {
	if err := ctx.Err(); err != nil {
		return model.Membership{}, err
	}
	m, err := scanMembership(q.db.QueryRowContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE list_id = ? AND user_id = ?`,
		listID, userID,
	))
	return m, sqliteErr(err)
}

func (q sqlQueries) ListMemberships(ctx context.Context, listID string) ([]model.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+membershipColumns+` FROM memberships WHERE list_id = ? ORDER BY created_at, rowid`,
		listID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanMembership)
}

func (q sqlQueries) PutInvite(ctx context.Context, inv model.Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if inv.ID == "" || inv.ListID == "" || inv.Token == "" {
		return ErrInvalidInput
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO invites (`+inviteColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
		    SET email = excluded.email,
		        status = excluded.status`,
		inv.ID, inv.ListID, inv.Email, inv.InvitedBy, inv.Token, string(inv.Status), inv.CreatedAt,
	)
	return sqliteErr(err)
}

func (q sqlQueries) GetInvite(ctx context.Context, id string) (model.Invite, error) {
	if err := ctx.Err(); err != nil {
		return model.Invite{}, err
	}
	inv, err := scanInvite(q.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE id = ?`, id))
	return inv, sqliteErr(err)
}

func (q sqlQueries) GetInviteByToken(ctx context.Context, token string) (model.Invite, error) {
	if err := ctx.Err(); err != nil {
		return model.Invite{}, err
	}
	inv, err := scanInvite(q.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE token = ?`, token))
	return inv, sqliteErr(err)
}

func (q sqlQueries) FindPendingInvite(ctx context.Context, listID string) (model.Invite, error) {
	if err := ctx.Err(); err != nil {
		return model.Invite{}, err
	}
	inv, err := scanInvite(q.db.QueryRowContext(ctx,
		`SELECT `+inviteColumns+` FROM invites
		  WHERE list_id = ? AND status = 'pending'
		  ORDER BY created_at, rowid
		  LIMIT 1`,
		listID,
	))
	return inv, sqliteErr(err)
}

func (q sqlQueries) PutTask(ctx context.Context, t model.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" || t.ListID == "" {
		return ErrInvalidInput
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE
		    SET title = excluded.title,
		        notes = excluded.notes,
		        due_at = excluded.due_at,
		        estimate_minutes = excluded.estimate_minutes,
		        priority = excluded.priority,
		        status = excluded.status,
		        completed_at = excluded.completed_at,
		        assignee_id = excluded.assignee_id`,
		t.ID, t.ListID, t.Title, t.Notes, t.DueAt, t.EstimateMinutes, t.Priority,
		string(t.Status), t.CreatedAt, t.CompletedAt, t.CreatedBy, t.AssigneeID,
	)
	return sqliteErr(err)
}

func (q sqlQueries) GetTask(ctx context.Context, id string) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}
	t, err := scanTask(q.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	return t, sqliteErr(err)
}

func (q sqlQueries) ListTasks(ctx context.Context, listID string) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE list_id = ? ORDER BY created_at, rowid`,
		listID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanTask)
}

func (q sqlQueries) ListTasksForUser(ctx context.Context, userID string) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+prefixed("t", taskColumns)+`
		   FROM tasks t
		   JOIN memberships m ON m.list_id = t.list_id
		  WHERE m.user_id = ?
		  ORDER BY t.created_at, t.rowid`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows, scanTask)
}

func (q sqlQueries) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q sqlQueries) AppendEvent(ctx context.Context, e model.Event) (model.Event, error) {
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
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO events (id, list_id, type, at, actor_id, data) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ListID, string(e.Type), e.At, e.ActorID, data,
	)
	if err != nil {
		return model.Event{}, sqliteErr(err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return model.Event{}, err
	}
	e.Seq = seq
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	return e, nil
}

func (q sqlQueries) PageEvents(ctx context.Context, listID string, offset, limit int) ([]model.Event, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if offset < 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT count(*) FROM events WHERE list_id = ?`, listID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		  WHERE list_id = ?
		  ORDER BY at DESC, seq ASC
		  LIMIT ? OFFSET ?`,
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

func sqliteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return ErrConflict
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
		return ErrConflict
	}
	return err
}

package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"tasklist/cmd/internal/model"
)

const (
	userColumns       = "id, email, name, avatar, external_auth_id, created_at"
	listColumns       = "id, name, color, owner_id, created_at"
	membershipColumns = "id, list_id, user_id, role, created_at"
	inviteColumns     = "id, list_id, email, invited_by, token, status, created_at"
	taskColumns       = "id, list_id, title, notes, due_at, estimate_minutes, priority, status, created_at, completed_at, created_by, assignee_id"
	eventColumns      = "seq, id, list_id, type, at, actor_id, data"
)

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type rowIter interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanUser(r rowScanner) (model.User, error) {
	var u model.User
	err := r.Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.ExternalAuthID, &u.CreatedAt)
	return u, err
}

func scanList(r rowScanner) (model.List, error) {
	var l model.List
	err := r.Scan(&l.ID, &l.Name, &l.Color, &l.OwnerID, &l.CreatedAt)
	return l, err
}

func scanMembership(r rowScanner) (model.Membership, error) {
	var m model.Membership
	var role string
	if err := r.Scan(&m.ID, &m.ListID, &m.UserID, &role, &m.CreatedAt); err != nil {
		return model.Membership{}, err
	}
	m.Role = model.Role(role)
	return m, nil
}

func scanInvite(r rowScanner) (model.Invite, error) {
	var inv model.Invite
	var status string
	if err := r.Scan(&inv.ID, &inv.ListID, &inv.Email, &inv.InvitedBy, &inv.Token, &status, &inv.CreatedAt); err != nil {
		return model.Invite{}, err
	}
	inv.Status = model.InviteStatus(status)
	return inv, nil
}

func scanTask(r rowScanner) (model.Task, error) {
	var t model.Task
	var status string
	err := r.Scan(
		&t.ID,
		&t.ListID,
		&t.Title,
		&t.Notes,
		&t.DueAt,
		&t.EstimateMinutes,
		&t.Priority,
		&status,
		&t.CreatedAt,
		&t.CompletedAt,
		&t.CreatedBy,
		&t.AssigneeID,
	)
	if err != nil {
		return model.Task{}, err
	}
	t.Status = model.TaskStatus(status)
	return t, nil
}

func scanEvent(r rowScanner) (model.Event, error) {
	var e model.Event
	var typ string
	var data []byte
	if err := r.Scan(&e.Seq, &e.ID, &e.ListID, &typ, &e.At, &e.ActorID, &data); err != nil {
		return model.Event{}, err
	}
	e.Type = model.EventType(typ)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e.Data); err != nil {
			return model.Event{}, fmt.Errorf("decode event data: %w", err)
		}
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	return e, nil
}

func scanAll[T any](rows rowIter, scan func(rowScanner) (T, error)) ([]T, error) {
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeEventData(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode event data: %w", err)
	}
	return string(b), nil
}

func validateEvent(e model.Event) error {
	if e.ID == "" || e.ListID == "" || e.Type == "" {
		return ErrInvalidInput
	}
	return nil
}

// prefixed qualifies every column in a column list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

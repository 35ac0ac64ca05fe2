package store

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"tasklist/cmd/internal/model"
)

// MemoryStore keeps every table in process memory.
//
// Reads share a read lock; writes and Tx take the exclusive lock, so every
// transaction is serialized regardless of its lock key. A failed Tx restores
// the snapshot taken before fn ran. fn must only use the Queries it is given.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memData
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

// Tx runs fn under the exclusive lock and rolls back on error.
func (s *MemoryStore) Tx(ctx context.Context, _ string, fn func(ctx context.Context, q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.data.clone()
	if err := fn(ctx, s.data); err != nil {
		s.data = snap
		return err
	}
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a noop.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) read() (*memData, func()) {
	s.mu.RLock()
	return s.data, s.mu.RUnlock
}

func (s *MemoryStore) write() (*memData, func()) {
	s.mu.Lock()
	return s.data, s.mu.Unlock
}

func (s *MemoryStore) PutUser(ctx context.Context, u model.User) error {
	d, done := s.write()
	defer done()
	return d.PutUser(ctx, u)
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (model.User, error) {
	d, done := s.read()
	defer done()
	return d.GetUser(ctx, id)
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	d, done := s.read()
	defer done()
	return d.GetUserByEmail(ctx, email)
}

func (s *MemoryStore) GetUserByExternalAuthID(ctx context.Context, subject string) (model.User, error) {
	d, done := s.read()
	defer done()
	return d.GetUserByExternalAuthID(ctx, subject)
}

func (s *MemoryStore) GetUsers(ctx context.Context, ids []string) (map[string]model.User, error) {
	d, done := s.read()
	defer done()
	return d.GetUsers(ctx, ids)
}

func (s *MemoryStore) PutList(ctx context.Context, l model.List) error {
	d, done := s.write()
	defer done()
	return d.PutList(ctx, l)
}

func (s *MemoryStore) GetList(ctx context.Context, id string) (model.List, error) {
	d, done := s.read()
	defer done()
	return d.GetList(ctx, id)
}

func (s *MemoryStore) ListListsForUser(ctx context.Context, userID string) ([]model.List, error) {
	d, done := s.read()
	defer done()
	return d.ListListsForUser(ctx, userID)
}

func (s *MemoryStore) DeleteList(ctx context.Context, id string) error {
	d, done := s.write()
	defer done()
	return d.DeleteList(ctx, id)
}

func (s *MemoryStore) PutMembership(ctx context.Context, m model.Membership) error {
	d, done := s.write()
	defer done()
	return d.PutMembership(ctx, m)
}

func (s *MemoryStore) GetMembership(ctx context.Context, listID, userID string) (model.Membership, error) {
	d, done := s.read()
	defer done()
	return d.GetMembership(ctx, listID, userID)
}

func (s *MemoryStore) ListMemberships(ctx context.Context, listID string) ([]model.Membership, error) {
	d, done := s.read()
	defer done()
	return d.ListMemberships(ctx, listID)
}

func (s *MemoryStore) PutInvite(ctx context.Context, inv model.Invite) error {
	d, done := s.write()
	defer done()
	return d.PutInvite(ctx, inv)
}

func (s *MemoryStore) GetInvite(ctx context.Context, id string) (model.Invite, error) {
	d, done := s.read()
	defer done()
	return d.GetInvite(ctx, id)
}

func (s *MemoryStore) GetInviteByToken(ctx context.Context, token string) (model.Invite, error) {
	d, done := s.read()
	defer done()
	return d.GetInviteByToken(ctx, token)
}

func (s *MemoryStore) FindPendingInvite(ctx context.Context, listID string) (model.Invite, error) {
	d, done := s.read()
	defer done()
	return d.FindPendingInvite(ctx, listID)
}

func (s *MemoryStore) PutTask(ctx context.Context, t model.Task) error {
	d, done := s.write()
	defer done()
	return d.PutTask(ctx, t)
}

func (s *MemoryStore) GetTask(ctx context.Context, id string) (model.Task, error) {
	d, done := s.read()
	defer done()
	return d.GetTask(ctx, id)
}

func (s *MemoryStore) ListTasks(ctx context.Context, listID string) ([]model.Task, error) {
	d, done := s.read()
	defer done()
	return d.ListTasks(ctx, listID)
}

func (s *MemoryStore) ListTasksForUser(ctx context.Context, userID string) ([]model.Task, error) {
	d, done := s.read()
	defer done()
	return d.ListTasksForUser(ctx, userID)
}

func (s *MemoryStore) DeleteTask(ctx context.Context, id string) error {
	d, done := s.write()
	defer done()
	return d.DeleteTask(ctx, id)
}

func (s *MemoryStore) AppendEvent(ctx context.Context, e model.Event) (model.Event, error) {
	d, done := s.write()
	defer done()
	return d.AppendEvent(ctx, e)
}

func (s *MemoryStore) PageEvents(ctx context.Context, listID string, offset, limit int) ([]model.Event, int, error) {
	d, done := s.read()
	defer done()
	return d.PageEvents(ctx, listID, offset, limit)
}

// table is an insertion-ordered collection keyed by id.
type table[T any] struct {
	rows []T
	id   func(T) string
}

func (t *table[T]) put(v T) {
	id := t.id(v)
	for i := range t.rows {
		if t.id(t.rows[i]) == id {
			t.rows[i] = v
			return
		}
	}
	t.rows = append(t.rows, v)
}

func (t *table[T]) get(id string) (T, bool) {
	return t.first(func(v T) bool { return t.id(v) == id })
}

func (t *table[T]) first(match func(T) bool) (T, bool) {
	for _, v := range t.rows {
		if match(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (t *table[T]) filter(match func(T) bool) []T {
	out := []T{}
	for _, v := range t.rows {
		if match(v) {
			out = append(out, v)
		}
	}
	return out
}

func (t *table[T]) remove(match func(T) bool) int {
	n := len(t.rows)
	t.rows = slices.DeleteFunc(t.rows, match)
	return n - len(t.rows)
}

func (t table[T]) clone() table[T] {
	return table[T]{rows: slices.Clone(t.rows), id: t.id}
}

type memData struct {
	users       table[model.User]
	lists       table[model.List]
	memberships table[model.Membership]
	invites     table[model.Invite]
	tasks       table[model.Task]
	events      []model.Event
	seq         int64
}

func newMemData() *memData {
	return &memData{
		users:       table[model.User]{id: func(v model.User) string { return v.ID }},
		lists:       table[model.List]{id: func(v model.List) string { return v.ID }},
		memberships: table[model.Membership]{id: func(v model.Membership) string { return v.ID }},
		invites:     table[model.Invite]{id: func(v model.Invite) string { return v.ID }},
		tasks:       table[model.Task]{id: func(v model.Task) string { return v.ID }},
	}
}

func (d *memData) clone() *memData {
	return &memData{
		users:       d.users.clone(),
		lists:       d.lists.clone(),
		memberships: d.memberships.clone(),
		invites:     d.invites.clone(),
		tasks:       d.tasks.clone(),
		events:      slices.Clone(d.events),
		seq:         d.seq,
	}
}

func (d *memData) PutUser(ctx context.Context, u model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.ID == "" || u.Email == "" {
		return ErrInvalidInput
	}
	if _, taken := d.users.first(func(v model.User) bool {
		if v.ID == u.ID {
			return false
		}
		if strings.EqualFold(v.Email, u.Email) {
			return true
		}
		return u.ExternalAuthID != nil && v.ExternalAuthID != nil && *v.ExternalAuthID == *u.ExternalAuthID
	}); taken {
		return ErrConflict
	}
	d.users.put(u)
	return nil
}

func (d *memData) GetUser(ctx context.Context, id string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, ok := d.users.get(id)
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (d *memData) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, ok := d.users.first(func(v model.User) bool { return strings.EqualFold(v.Email, email) })
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (d *memData) GetUserByExternalAuthID(ctx context.Context, subject string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	u, ok := d.users.first(func(v model.User) bool {
		return v.ExternalAuthID != nil && *v.ExternalAuthID == subject
	})
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (d *memData) GetUsers(ctx context.Context, ids []string) (map[string]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]model.User, len(ids))
	for _, id := range ids {
		if u, ok := d.users.get(id); ok {
			out[id] = u
		}
	}
	return out, nil
}

func (d *memData) PutList(ctx context.Context, l model.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.ID == "" || l.OwnerID == "" {
		return ErrInvalidInput
	}
	d.lists.put(l)
	return nil
}

func (d *memData) GetList(ctx context.Context, id string) (model.List, error) {
	if err := ctx.Err(); err != nil {
		return model.List{}, err
	}
	l, ok := d.lists.get(id)
	if !ok {
		return model.List{}, ErrNotFound
	}
	return l, nil
}

func (d *memData) ListListsForUser(ctx context.Context, userID string) ([]model.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	member := d.memberListIDs(userID)
	return d.lists.filter(func(v model.List) bool { return member[v.ID] }), nil
}

func (d *memData) DeleteList(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.lists.remove(func(v model.List) bool { return v.ID == id }) == 0 {
		return ErrNotFound
	}
	d.tasks.remove(func(v model.Task) bool { return v.ListID == id })
	d.memberships.remove(func(v model.Membership) bool { return v.ListID == id })
	d.invites.remove(func(v model.Invite) bool { return v.ListID == id })
	return nil
}

func (d *memData) PutMembership(ctx context.Context, m model.Membership) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ID == "" || m.ListID == "" || m.UserID == "" {
		return ErrInvalidInput
	}
	if _, taken := d.memberships.first(func(v model.Membership) bool {
		return v.ID != m.ID && v.ListID == m.ListID && v.UserID == m.UserID
	}); taken {
		return ErrConflict
	}
	d.memberships.put(m)
	return nil
}

func (d *memData) GetMembership(ctx context.Context, listID, userID string) (model.Membership, error) {
	if err := ctx.Err(); err != nil {
		return model.Membership{}, err
	}
	m, ok := d.memberships.first(func(v model.Membership) bool {
		return v.ListID == listID && v.UserID == userID
	})
	if !ok {
		return model.Membership{}, ErrNotFound
	}
	return m, nil
}

func (d *memData) ListMemberships(ctx context.Context, listID string) ([]model.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.memberships.filter(func(v model.Membership) bool { return v.ListID == listID }), nil
}

func (d *memData) PutInvite(ctx context.Context, inv model.Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if inv.ID == "" || inv.ListID == "" || inv.Token == "" {
		return ErrInvalidInput
	}
	if _, taken := d.invites.first(func(v model.Invite) bool {
		return v.ID != inv.ID && v.Token == inv.Token
	}); taken {
		return ErrConflict
	}
	d.invites.put(inv)
	return nil
}

func (d *memData) GetInvite(ctx context.Context, id string) (model.Invite, error) {
	if err := ctx.Err(); err != nil {
		return model.Invite{}, err
	}
	inv, ok := d.invites.get(id)
	if !ok {
		return model.Invite{}, ErrNotFound
	}
	return inv, nil
}

func (d *memData) GetInviteByToken(ctx context.Context, token string) (model.Invite, error) {
	if err := ctx.Err(); err != nil {
		return model.Invite{}, err
	}
	inv, ok := d.invites.first(func(v model.Invite) bool { return v.Token == token })
	if !ok {
		return model.Invite{}, ErrNotFound
	}
	return inv, nil
}

func (d *memData) FindPendingInvite(ctx context.Context, listID string) (model.Invite, error) {
	if err := ctx.Err(); err != nil {
		return model.Invite{}, err
	}
	inv, ok := d.invites.first(func(v model.Invite) bool {
		return v.ListID == listID && v.Status == model.InvitePending
	})
	if !ok {
		return model.Invite{}, ErrNotFound
	}
	return inv, nil
}

func (d *memData) PutTask(ctx context.Context, t model.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" || t.ListID == "" {
		return ErrInvalidInput
	}
	d.tasks.put(t)
	return nil
}

func (d *memData) GetTask(ctx context.Context, id string) (model.Task, error) {
	if err := ctx.Err(); err != nil {
		return model.Task{}, err
	}
	t, ok := d.tasks.get(id)
	if !ok {
		return model.Task{}, ErrNotFound
	}
	return t, nil
}

func (d *memData) ListTasks(ctx context.Context, listID string) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.tasks.filter(func(v model.Task) bool { return v.ListID == listID }), nil
}

func (d *memData) ListTasksForUser(ctx context.Context, userID string) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	member := d.memberListIDs(userID)
	return d.tasks.filter(func(v model.Task) bool { return member[v.ListID] }), nil
}

func (d *memData) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.tasks.remove(func(v model.Task) bool { return v.ID == id }) == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *memData) AppendEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if err := ctx.Err(); err != nil {
		return model.Event{}, err
	}
	if err := validateEvent(e); err != nil {
		return model.Event{}, err
	}
	if slices.ContainsFunc(d.events, func(v model.Event) bool { return v.ID == e.ID }) {
		return model.Event{}, ErrConflict
	}
	d.seq++
	e.Seq = d.seq
	e.Data = maps.Clone(e.Data)
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	d.events = append(d.events, e)
	return e, nil
}

func (d *memData) PageEvents(ctx context.Context, listID string, offset, limit int) ([]model.Event, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if offset < 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}
	var all []model.Event
	for _, e := range d.events {
		if e.ListID == listID {
			all = append(all, e)
		}
	}
	// events are kept in seq order, so a stable sort leaves ties in insertion order
	sort.SliceStable(all, func(i, j int) bool { return all[i].At > all[j].At })

	total := len(all)
	if offset >= total {
		return []model.Event{}, total, nil
	}
	end := min(offset+limit, total)
	out := make([]model.Event, 0, end-offset)
	for _, e := range all[offset:end] {
		e.Data = maps.Clone(e.Data)
		out = append(out, e)
	}
	return out, total, nil
}

func (d *memData) memberListIDs(userID string) map[string]bool {
	ids := make(map[string]bool)
	for _, m := range d.memberships.rows {
		if m.UserID == userID {
			ids[m.ListID] = true
		}
	}
	return ids
}

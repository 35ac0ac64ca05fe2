// Package lists manages list lifecycle: creation with an owner membership,
// metadata updates, cascading deletion, enumeration, and progress stats.
package lists

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"tasklist/cmd/identity"
	"tasklist/cmd/identity/ids"
	"tasklist/cmd/internal/activity"
	"tasklist/cmd/internal/authz"
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
	"tasklist/cmd/internal/store"
)

const maxNameLen = 200

// CreateInput describes a new list.
type CreateInput struct {
	Name  string
	Color *string
}

// Patch updates list metadata. An explicit null color clears it.
type Patch struct {
	Name  model.Field[string]
	Color model.Field[string]
}

// Service implements list operations.
type Service struct {
	store  store.Store
	authz  *authz.Engine
	events *activity.Log
	now    func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithAuthorizer sets the engine that gates list operations.
func WithAuthorizer(e *authz.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.authz = e
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service.
func NewService(st store.Store, events *activity.Log, opts ...Option) *Service {
	if events == nil {
		events = activity.New(st)
	}
	s := &Service{
		store:  st,
		authz:  authz.NewEngine(nil),
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create makes a list owned by actorID.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (model.List, error) {
	name, err := validName(in.Name)
	if err != nil {
		return model.List{}, err
	}
	now := s.now()
	listID, err := ids.NewULID(now)
	if err != nil {
		return model.List{}, err
	}
	membershipID, err := ids.NewULID(now)
	if err != nil {
		return model.List{}, err
	}
	l := model.List{
		ID:        listID,
		Name:      name,
		Color:     trimPtr(in.Color),
		OwnerID:   actorID,
		CreatedAt: model.Millis(now),
	}

	err = s.store.Tx(ctx, listID, func(ctx context.Context, q store.Queries) error {
		if _, err := identity.EnsureUser(ctx, q, actorID, now); err != nil {
			return err
		}
		if err := q.PutList(ctx, l); err != nil {
			return err
		}
		return q.PutMembership(ctx, model.Membership{
			ID:        membershipID,
			ListID:    listID,
			UserID:    actorID,
			Role:      model.RoleOwner,
			CreatedAt: model.Millis(now),
		})
	})
	if err != nil {
		return model.List{}, fault.Op("lists.Create", err)
	}
	s.events.Append(ctx, listID, model.EventListCreated, map[string]any{"name": name}, actorID)
	return l, nil
}

// Update applies p to the list's metadata.
func (s *Service) Update(ctx context.Context, actorID, listID string, p Patch) (model.List, error) {
	var (
		out     model.List
		changed []string
	)
	err := s.store.Tx(ctx, listID, func(ctx context.Context, q store.Queries) error {
		if _, err := s.authz.Authorize(ctx, q, actorID, listID, authz.ActionUpdateList, nil); err != nil {
			return err
		}
		l, err := getList(ctx, q, listID)
		if err != nil {
			return err
		}
		if p.Name.Set {
			if p.Name.Null {
				return fault.InvalidName
			}
			name, err := validName(p.Name.Value)
			if err != nil {
				return err
			}
			if name != l.Name {
				l.Name = name
				changed = append(changed, "name")
			}
		}
		if p.Color.Set {
			color := trimPtr(p.Color.Ptr())
			if !equalPtr(color, l.Color) {
				l.Color = color
				changed = append(changed, "color")
			}
		}
		out = l
		if len(changed) == 0 {
			return nil
		}
		return q.PutList(ctx, l)
	})
	if err != nil {
		return model.List{}, fault.Op("lists.Update", err)
	}
	if len(changed) > 0 {
		s.events.Append(ctx, listID, model.EventListUpdated, map[string]any{"fields": changed}, actorID)
	}
	return out, nil
}

// Delete removes the list with its tasks, memberships, and invites. Events are kept.
func (s *Service) Delete(ctx context.Context, actorID, listID string) error {
	var name string
	err := s.store.Tx(ctx, listID, func(ctx context.Context, q store.Queries) error {
		if _, err := s.authz.Authorize(ctx, q, actorID, listID, authz.ActionDeleteList, nil); err != nil {
			return err
		}
		l, err := getList(ctx, q, listID)
		if err != nil {
			return err
		}
		name = l.Name
		return q.DeleteList(ctx, listID)
	})
	if err != nil {
		return fault.Op("lists.Delete", err)
	}
	s.events.Append(ctx, listID, model.EventListDeleted, map[string]any{"name": name}, actorID)
	return nil
}

// Get returns a list the actor is a member of.
func (s *Service) Get(ctx context.Context, actorID, listID string) (model.List, error) {
	if _, err := s.authz.Authorize(ctx, s.store, actorID, listID, authz.ActionViewList, nil); err != nil {
		return model.List{}, fault.Op("lists.Get", err)
	}
	l, err := getList(ctx, s.store, listID)
	return l, fault.Op("lists.Get", err)
}

// ForUser returns every list userID is a member of.
func (s *Service) ForUser(ctx context.Context, userID string) ([]model.List, error) {
	ls, err := s.store.ListListsForUser(ctx, userID)
	return ls, fault.Op("lists.ForUser", err)
}

func getList(ctx context.Context, q store.Queries, listID string) (model.List, error) {
	l, err := q.GetList(ctx, listID)
	if errors.Is(err, store.ErrNotFound) {
		return model.List{}, fault.NotFound("list")
	}
	return l, err
}

func validName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fault.InvalidName
	}
	if utf8.RuneCountInString(s) > maxNameLen {
		return "", fault.Invalid("invalid_name", "name too long")
	}
	return s, nil
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

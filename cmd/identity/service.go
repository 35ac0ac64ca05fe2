package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"tasklist/cmd/identity/ids"
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
	"tasklist/cmd/internal/store"
)

// users are not list-scoped; every identity write shares one lock key
const lockKey = "identity"

// ExternalIdentity is a verified identity asserted by an outside provider.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
}

// ProfilePatch updates the caller's own profile. An explicit null avatar clears it.
type ProfilePatch struct {
	Name   model.Field[string]
	Avatar model.Field[string]
}

// Service manages user records.
type Service struct {
	store store.Store
	now   func() time.Time
}

// Option configures the Service.
type Option func(*Service) error

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now == nil {
			return fault.Invalid("invalid_option", "nil clock")
		}
		s.now = now
		return nil
	}
}

// NewService constructs a Service.
func NewService(st store.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fault.Invalid("invalid_option", "nil store")
	}
	s := &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Get returns the user with id.
func (s *Service) Get(ctx context.Context, id string) (model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, fault.NotFound("user")
	}
	return u, fault.Op("identity.Get", err)
}

// Ensure returns the user with id, bootstrapping a minimal record when absent.
func (s *Service) Ensure(ctx context.Context, id string) (model.User, error) {
	var out model.User
	err := s.store.Tx(ctx, lockKey, func(ctx context.Context, q store.Queries) error {
		u, err := EnsureUser(ctx, q, id, s.now())
		out = u
		return err
	})
	return out, fault.Op("identity.Ensure", err)
}

// EnsureUser is Ensure for callers that already hold a transaction.
func EnsureUser(ctx context.Context, q store.Queries, id string, now time.Time) (model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.User{}, fault.Invalid("invalid_user", "user id required")
	}
	u, err := q.GetUser(ctx, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.User{}, err
	}
	u = model.User{
		ID:        id,
		Email:     BootstrapEmail(id),
		Name:      id,
		CreatedAt: model.Millis(now),
	}
	if err := q.PutUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.User{}, fault.EmailInUse
		}
		return model.User{}, err
	}
	return u, nil
}

// Create registers a user by email. name defaults to the email local part.
func (s *Service) Create(ctx context.Context, email, name string) (model.User, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return model.User{}, fault.Invalid("invalid_email", "valid email required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = localPart(email)
	}
	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{ID: id, Email: email, Name: name, CreatedAt: model.Millis(now)}

	err = s.store.Tx(ctx, lockKey, func(ctx context.Context, q store.Queries) error {
		if _, err := q.GetUserByEmail(ctx, email); err == nil {
			return fault.EmailInUse
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := q.PutUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fault.EmailInUse
			}
			return err
		}
		return nil
	})
	if err != nil {
		return model.User{}, fault.Op("identity.Create", err)
	}
	return u, nil
}

// ResolveExternal maps an external identity to a user: by subject first,
// then by email, else a new user. Existing fields win over provider data.
func (s *Service) ResolveExternal(ctx context.Context, ext ExternalIdentity) (model.User, error) {
	subject := strings.TrimSpace(ext.Subject)
	if subject == "" {
		return model.User{}, fault.Invalid("invalid_subject", "external subject required")
	}
	email := NormalizeEmail(ext.Email)
	name := strings.TrimSpace(ext.Name)
	if name == "" {
		name = localPart(email)
	}
	if name == "" {
		name = "User"
	}

	var out model.User
	err := s.store.Tx(ctx, lockKey, func(ctx context.Context, q store.Queries) error {
		u, err := q.GetUserByExternalAuthID(ctx, subject)
		if errors.Is(err, store.ErrNotFound) && email != "" {
			u, err = q.GetUserByEmail(ctx, email)
		}
		switch {
		case errors.Is(err, store.ErrNotFound):
			if email == "" {
				return fault.Invalid("invalid_email", "email required for new users")
			}
			now := s.now()
			id, err := ids.NewULID(now)
			if err != nil {
				return err
			}
			u = model.User{ID: id, Email: email, Name: name, ExternalAuthID: &subject, CreatedAt: model.Millis(now)}
		case err != nil:
			return err
		default:
			if u.Email == "" {
				u.Email = email
			}
			if u.Name == "" {
				u.Name = name
			}
			if u.ExternalAuthID == nil {
				u.ExternalAuthID = &subject
			}
		}
		if err := q.PutUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return fault.EmailInUse
			}
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return model.User{}, fault.Op("identity.ResolveExternal", err)
	}
	return out, nil
}

// UpdateProfile applies p to the user's own record.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p ProfilePatch) (model.User, error) {
	var out model.User
	err := s.store.Tx(ctx, lockKey, func(ctx context.Context, q store.Queries) error {
		u, err := q.GetUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return fault.NotFound("user")
		}
		if err != nil {
			return err
		}
		if p.Name.Set {
			name := strings.TrimSpace(p.Name.Value)
			if p.Name.Null || name == "" {
				return fault.InvalidName
			}
			u.Name = name
		}
		if p.Avatar.Set {
			u.Avatar = trimPtr(p.Avatar.Ptr())
		}
		if err := q.PutUser(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return model.User{}, fault.Op("identity.UpdateProfile", err)
	}
	return out, nil
}

// Package invite implements the tokenized join protocol for lists.
package invite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"tasklist/cmd/identity"
	"tasklist/cmd/identity/ids"
	"tasklist/cmd/internal/activity"
	"tasklist/cmd/internal/authz"
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
	"tasklist/cmd/internal/store"
	"tasklist/cmd/security/token"
)

const defaultTokenBytes = token.DefaultBytes

// Service manages invite creation, acceptance, and revocation.
type Service struct {
	store      store.Store
	authz      *authz.Engine
	events     *activity.Log
	log        *slog.Logger
	now        func() time.Time
	tokenBytes int
}

// Option configures the Service.
type Option func(*Service) error

// WithTokenBytes sets the length of generated invite tokens in bytes.
func WithTokenBytes(n int) Option {
	return func(s *Service) error {
		if n < token.MinBytes {
			return token.ErrTooShort
		}
		s.tokenBytes = n
		return nil
	}
}

// WithAuthorizer sets the engine that gates invite creation and revocation.
func WithAuthorizer(e *authz.Engine) Option {
	return func(s *Service) error {
		if e != nil {
			s.authz = e
		}
		return nil
	}
}

// WithLogger sets the logger for invite lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) error {
		if log != nil {
			s.log = log
		}
		return nil
	}
}

// WithClock overrides the invite timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(st store.Store, events *activity.Log, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fault.Invalid("invalid_input", "store required")
	}
	if events == nil {
		events = activity.New(st)
	}
	s := &Service{
		store:      st,
		authz:      authz.NewEngine(nil),
		events:     events,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        func() time.Time { return time.Now().UTC() },
		tokenBytes: defaultTokenBytes,
	}
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

// CreateInvite returns the list's pending invite, minting one if none exists.
// emailHint is recorded on a newly minted invite only.
func (s *Service) CreateInvite(ctx context.Context, actorID, listID string, emailHint *string) (model.Invite, error) {
	hint, err := normalizeHint(emailHint)
	if err != nil {
		return model.Invite{}, err
	}

	var (
		out    model.Invite
		minted bool
	)
	err = s.store.Tx(ctx, listID, func(ctx context.Context, q store.Queries) error {
		if _, err := s.authz.Authorize(ctx, q, actorID, listID, authz.ActionManageInvites, nil); err != nil {
			return err
		}
		existing, err := q.FindPendingInvite(ctx, listID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := s.now()
		tok, err := token.New(s.tokenBytes)
		if err != nil {
			return err
		}
		id, err := ids.NewULID(now)
		if err != nil {
			return err
		}
		out = model.Invite{
			ID:        id,
			ListID:    listID,
			Email:     hint,
			InvitedBy: actorID,
			Token:     tok,
			Status:    model.InvitePending,
			CreatedAt: model.Millis(now),
		}
		minted = true
		return q.PutInvite(ctx, out)
	})
	if err != nil {
		return model.Invite{}, fault.Op("invite.CreateInvite", err)
	}
	if minted {
		s.log.Info("invite.create", "list_id", listID, "invite_id", out.ID, "token_fp", token.Fingerprint(out.Token))
		s.events.Append(ctx, listID, model.EventInviteCreated, map[string]any{"inviteId": out.ID}, actorID)
	}
	return out, nil
}

// AcceptInvite joins userID to the invite's list as a member. A token can be accepted once.
// Users joining with an unknown id are bootstrapped.
func (s *Service) AcceptInvite(ctx context.Context, userID, rawToken string) (model.Membership, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.Membership{}, fault.Op("invite.AcceptInvite", fault.Invalid("invalid_user", "user id required"))
	}
	tok, err := token.Normalize(rawToken)
	if err != nil {
		return model.Membership{}, fault.Op("invite.AcceptInvite", fault.InvalidInvite)
	}
	inv, err := s.store.GetInviteByToken(ctx, tok)
	if errors.Is(err, store.ErrNotFound) {
		return model.Membership{}, fault.Op("invite.AcceptInvite", fault.InvalidInvite)
	}
	if err != nil {
		return model.Membership{}, fault.Op("invite.AcceptInvite", err)
	}

	var out model.Membership
	err = s.store.Tx(ctx, inv.ListID, func(ctx context.Context, q store.Queries) error {
		// re-read under the list lock; a concurrent accept may have won
		inv, err := q.GetInviteByToken(ctx, tok)
		if errors.Is(err, store.ErrNotFound) {
			return fault.InvalidInvite
		}
		if err != nil {
			return err
		}
		if inv.Status != model.InvitePending {
			return fault.InvalidInvite
		}

		now := s.now()
		if _, err := identity.EnsureUser(ctx, q, userID, now); err != nil {
			return err
		}
		m, err := q.GetMembership(ctx, inv.ListID, userID)
		switch {
		case err == nil:
			out = m
		case errors.Is(err, store.ErrNotFound):
			id, err := ids.NewULID(now)
			if err != nil {
				return err
			}
			out = model.Membership{
				ID:        id,
				ListID:    inv.ListID,
				UserID:    userID,
				Role:      model.RoleMember,
				CreatedAt: model.Millis(now),
			}
			if err := q.PutMembership(ctx, out); err != nil {
				return err
			}
		default:
			return err
		}

		inv.Status = model.InviteAccepted
		return q.PutInvite(ctx, inv)
	})
	if err != nil {
		return model.Membership{}, fault.Op("invite.AcceptInvite", err)
	}
	s.log.Info("invite.accept", "list_id", inv.ListID, "invite_id", inv.ID, "user_id", userID)
	s.events.Append(ctx, inv.ListID, model.EventInviteAccepted, map[string]any{
		"userId":  userID,
		"actorId": userID,
	}, userID)
	return out, nil
}

// RevokeInvite cancels a pending invite of listID.
func (s *Service) RevokeInvite(ctx context.Context, actorID, listID, inviteID string) (model.Invite, error) {
	var out model.Invite
	err := s.store.Tx(ctx, listID, func(ctx context.Context, q store.Queries) error {
		if _, err := s.authz.Authorize(ctx, q, actorID, listID, authz.ActionManageInvites, nil); err != nil {
			return err
		}
		inv, err := q.GetInvite(ctx, strings.TrimSpace(inviteID))
		if errors.Is(err, store.ErrNotFound) || (err == nil && inv.ListID != listID) {
			return fault.NotFound("invite")
		}
		if err != nil {
			return err
		}
		if inv.Status != model.InvitePending {
			return fault.InvalidInvite
		}
		inv.Status = model.InviteRevoked
		out = inv
		return q.PutInvite(ctx, inv)
	})
	if err != nil {
		return model.Invite{}, fault.Op("invite.RevokeInvite", err)
	}
	s.events.Append(ctx, listID, model.EventInviteRevoked, map[string]any{"inviteId": out.ID}, actorID)
	return out, nil
}

func normalizeHint(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	email := identity.NormalizeEmail(*v)
	if email == "" {
		return nil, nil
	}
	if !identity.ValidEmail(email) {
		return nil, fault.Invalid("invalid_email", "invalid email")
	}
	return &email, nil
}

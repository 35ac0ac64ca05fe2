// Package membership changes member roles and enumerates list members.
package membership

import (
	"context"
	"errors"
	"strings"

	"tasklist/cmd/internal/activity"
	"tasklist/cmd/internal/authz"
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
	"tasklist/cmd/internal/store"
)

// Member is a membership enriched with the member's profile.
type Member struct {
	model.Membership
	DisplayName string  `json:"displayName"`
	Email       string  `json:"email"`
	Avatar      *string `json:"avatar"`
}

// Service implements role management.
type Service struct {
	store  store.Store
	authz  *authz.Engine
	events *activity.Log
}

// Option configures the Service.
type Option func(*Service)

// WithAuthorizer sets the engine that gates role changes and member listing.
func WithAuthorizer(e *authz.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.authz = e
		}
	}
}

// NewService constructs a Service.
func NewService(st store.Store, events *activity.Log, opts ...Option) *Service {
	if events == nil {
		events = activity.New(st)
	}
	s := &Service{store: st, authz: authz.NewEngine(nil), events: events}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ChangeRole sets targetUserID's role on listID. Only owners may change roles,
// and a change that would leave the list without an owner is refused.
func (s *Service) ChangeRole(ctx context.Context, actorID, listID, targetUserID, newRole string) (model.Membership, error) {
	var out model.Membership
	changed := false
	err := s.store.Tx(ctx, listID, func(ctx context.Context, q store.Queries) error {
		if _, err := s.authz.Authorize(ctx, q, actorID, listID, authz.ActionChangeRole, nil); err != nil {
			return err
		}
		role, ok := model.ParseRole(newRole)
		if !ok {
			return fault.InvalidRole
		}
		target, err := q.GetMembership(ctx, listID, strings.TrimSpace(targetUserID))
		if errors.Is(err, store.ErrNotFound) {
			return fault.NotFound("member")
		}
		if err != nil {
			return err
		}

		members, err := q.ListMemberships(ctx, listID)
		if err != nil {
			return err
		}
		owners := model.CountOwners(members)
		if target.Role == model.RoleOwner && role != model.RoleOwner && owners <= 1 {
			return fault.CannotRemoveLastOwner
		}
		if target.UserID == actorID && role != model.RoleOwner && owners <= 1 {
			return fault.CannotLeaveWithoutOwner
		}

		out = target
		if target.Role == role {
			return nil
		}
		out.Role = role
		changed = true
		return q.PutMembership(ctx, out)
	})
	if err != nil {
		return model.Membership{}, fault.Op("membership.ChangeRole", err)
	}
	if changed {
		s.events.Append(ctx, listID, model.EventMemberRoleChanged, map[string]any{
			"targetUserId": out.UserID,
			"role":         string(out.Role),
			"actorId":      actorID,
		}, actorID)
	}
	return out, nil
}

// Members lists listID's members with their profiles.
func (s *Service) Members(ctx context.Context, actorID, listID string) ([]Member, error) {
	if _, err := s.authz.Authorize(ctx, s.store, actorID, listID, authz.ActionViewMembers, nil); err != nil {
		return nil, fault.Op("membership.Members", err)
	}
	ms, err := s.store.ListMemberships(ctx, listID)
	if err != nil {
		return nil, fault.Op("membership.Members", err)
	}
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.UserID)
	}
	users, err := s.store.GetUsers(ctx, ids)
	if err != nil {
		return nil, fault.Op("membership.Members", err)
	}

	out := make([]Member, 0, len(ms))
	for _, m := range ms {
		mem := Member{Membership: m, DisplayName: m.UserID}
		if u, ok := users[m.UserID]; ok {
			mem.DisplayName = u.DisplayName()
			mem.Email = u.Email
			mem.Avatar = u.Avatar
		}
		out = append(out, mem)
	}
	return out, nil
}

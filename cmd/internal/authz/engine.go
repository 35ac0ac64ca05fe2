package authz

import (
	"context"
	"errors"

	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/metrics"
	"tasklist/cmd/internal/model"
	"tasklist/cmd/internal/store"
)

// Engine resolves memberships and applies Decide.
type Engine struct {
	metrics *metrics.Metrics
}

// NewEngine returns an Engine; m may be nil.
func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{metrics: m}
}

// Authorize checks action for userID on listID, reading the membership
// through q (a Store or an open transaction). It returns the caller's
// membership when allowed and a fault.ErrForbidden error otherwise.
func (e *Engine) Authorize(ctx context.Context, q store.Queries, userID, listID string, action Action, task *model.Task) (model.Membership, error) {
	var mp *model.Membership
	m, err := q.GetMembership(ctx, listID, userID)
	switch {
	case err == nil:
		mp = &m
	case errors.Is(err, store.ErrNotFound):
	default:
		return model.Membership{}, err
	}

	d := Decide(mp, userID, action, task)
	if e != nil {
		e.metrics.AuthzDecision(string(action), d.Allowed)
	}
	if !d.Allowed {
		return model.Membership{}, fault.Forbidden(d.Reason)
	}
	return m, nil
}

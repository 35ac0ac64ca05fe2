// Package task creates, edits, and deletes tasks, enforcing per-field
// permissions and the completion invariant.
package task

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"tasklist/cmd/identity/ids"
	"tasklist/cmd/internal/activity"
	"tasklist/cmd/internal/authz"
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
	"tasklist/cmd/internal/store"
)

const (
	minPriority = 1
	maxPriority = 5
	maxTitleLen = 500
)

// CreateInput describes a new task.
type CreateInput struct {
	Title           string
	Notes           *string
	DueAt           model.Field[any]
	EstimateMinutes *int
	Priority        *int
	AssigneeID      *string
}

// Patch is a partial task update. Absent fields are left unchanged.
type Patch struct {
	Title           model.Field[string] `json:"title"`
	Notes           model.Field[string] `json:"notes"`
	DueAt           model.Field[any]    `json:"dueAt"`
	EstimateMinutes model.Field[int]    `json:"estimateMin"`
	Priority        model.Field[int]    `json:"priority"`
	Status          model.Field[string] `json:"status"`
	AssigneeID      model.Field[string] `json:"assigneeId"`
}

// Service implements task mutations.
type Service struct {
	store  store.Store
	authz  *authz.Engine
	events *activity.Log
	loc    *time.Location
	now    func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithAuthorizer sets the engine that gates task operations.
func WithAuthorizer(e *authz.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.authz = e
		}
	}
}

// WithLocation sets the zone used for due dates given without an offset.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the source of createdAt and completedAt.
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
		loc:    time.Local,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create adds a todo task to listID. Input is validated only once the actor
// is known to be allowed to create tasks.
func (s *Service) Create(ctx context.Context, actorID, listID string, in CreateInput) (model.Task, error) {
	var t model.Task
	err := s.store.Tx(ctx, listID, func(ctx context.Context, q store.Queries) error {
		if _, err := s.authz.Authorize(ctx, q, actorID, listID, authz.ActionCreateTask, nil); err != nil {
			return err
		}
		title, err := validTitle(in.Title)
		if err != nil {
			return err
		}
		due := NormalizeDueAt(in.DueAt, s.loc)
		if due.Kind == DueInvalid {
			return fault.InvalidDueAt
		}
		if err := validPriority(in.Priority); err != nil {
			return err
		}
		if err := validEstimate(in.EstimateMinutes); err != nil {
			return err
		}

		now := s.now()
		id, err := ids.NewULID(now)
		if err != nil {
			return err
		}
		t = model.Task{
			ID:              id,
			ListID:          listID,
			Title:           title,
			Notes:           trimPtr(in.Notes),
			EstimateMinutes: in.EstimateMinutes,
			Priority:        in.Priority,
			Status:          model.StatusTodo,
			CreatedAt:       model.Millis(now),
			CreatedBy:       actorID,
			AssigneeID:      trimPtr(in.AssigneeID),
		}
		if due.Kind == DueSet {
			t.DueAt = &due.At
		}
		if err := checkAssignee(ctx, q, listID, t.AssigneeID); err != nil {
			return err
		}
		return q.PutTask(ctx, t)
	})
	if err != nil {
		return model.Task{}, fault.Op("task.Create", err)
	}
	data := map[string]any{"taskId": t.ID, "title": t.Title}
	if t.AssigneeID != nil {
		data["assigneeId"] = *t.AssigneeID
	}
	s.events.Append(ctx, listID, model.EventTaskCreated, data, actorID)
	return t, nil
}

// Update applies p to taskID and records exactly one event describing the
// most significant change: status, then assignee, then other fields.
func (s *Service) Update(ctx context.Context, actorID, taskID string, p Patch) (model.Task, error) {
	current, err := getTask(ctx, s.store, taskID)
	if err != nil {
		return model.Task{}, fault.Op("task.Update", err)
	}

	var (
		out model.Task
		ev  *pendingEvent
	)
	err = s.store.Tx(ctx, current.ListID, func(ctx context.Context, q store.Queries) error {
		t, err := getTask(ctx, q, taskID)
		if err != nil {
			return err
		}
		if _, err := s.authz.Authorize(ctx, q, actorID, t.ListID, authz.ActionEditTask, &t); err != nil {
			return err
		}
		next, c, err := s.apply(t, p)
		if err != nil {
			return err
		}
		if c.statusChanged {
			if _, err := s.authz.Authorize(ctx, q, actorID, t.ListID, authz.ActionChangeTaskStatus, &t); err != nil {
				return err
			}
		}
		if c.assigneeChanged {
			if err := checkAssignee(ctx, q, t.ListID, next.AssigneeID); err != nil {
				return err
			}
		}
		out = next
		ev = c.event(t, next)
		if ev == nil {
			return nil
		}
		return q.PutTask(ctx, next)
	})
	if err != nil {
		return model.Task{}, fault.Op("task.Update", err)
	}
	if ev != nil {
		s.events.Append(ctx, out.ListID, ev.typ, ev.data, actorID)
	}
	return out, nil
}

// Delete removes taskID.
func (s *Service) Delete(ctx context.Context, actorID, taskID string) error {
	current, err := getTask(ctx, s.store, taskID)
	if err != nil {
		return fault.Op("task.Delete", err)
	}
	var deleted model.Task
	err = s.store.Tx(ctx, current.ListID, func(ctx context.Context, q store.Queries) error {
		t, err := getTask(ctx, q, taskID)
		if err != nil {
			return err
		}
		if _, err := s.authz.Authorize(ctx, q, actorID, t.ListID, authz.ActionDeleteTask, &t); err != nil {
			return err
		}
		deleted = t
		return q.DeleteTask(ctx, t.ID)
	})
	if err != nil {
		return fault.Op("task.Delete", err)
	}
	s.events.Append(ctx, deleted.ListID, model.EventTaskDeleted, map[string]any{
		"taskId": deleted.ID,
		"title":  deleted.Title,
	}, actorID)
	return nil
}

// Get returns taskID if the actor can see its list.
func (s *Service) Get(ctx context.Context, actorID, taskID string) (model.Task, error) {
	t, err := getTask(ctx, s.store, taskID)
	if err != nil {
		return model.Task{}, fault.Op("task.Get", err)
	}
	if _, err := s.authz.Authorize(ctx, s.store, actorID, t.ListID, authz.ActionViewTasks, nil); err != nil {
		return model.Task{}, fault.Op("task.Get", err)
	}
	return t, nil
}

// List returns the tasks of listID.
func (s *Service) List(ctx context.Context, actorID, listID string) ([]model.Task, error) {
	if _, err := s.authz.Authorize(ctx, s.store, actorID, listID, authz.ActionViewTasks, nil); err != nil {
		return nil, fault.Op("task.List", err)
	}
	ts, err := s.store.ListTasks(ctx, listID)
	return ts, fault.Op("task.List", err)
}

// ForUser returns tasks across every list userID belongs to.
func (s *Service) ForUser(ctx context.Context, userID string) ([]model.Task, error) {
	ts, err := s.store.ListTasksForUser(ctx, userID)
	return ts, fault.Op("task.ForUser", err)
}

func getTask(ctx context.Context, q store.Queries, id string) (model.Task, error) {
	t, err := q.GetTask(ctx, strings.TrimSpace(id))
	if errors.Is(err, store.ErrNotFound) {
		return model.Task{}, fault.NotFound("task")
	}
	return t, err
}

func checkAssignee(ctx context.Context, q store.Queries, listID string, assigneeID *string) error {
	if assigneeID == nil {
		return nil
	}
	_, err := q.GetMembership(ctx, listID, *assigneeID)
	if errors.Is(err, store.ErrNotFound) {
		return fault.InvalidAssignee
	}
	return err
}

func validTitle(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fault.InvalidTitle
	}
	if utf8.RuneCountInString(s) > maxTitleLen {
		return "", fault.Invalid("invalid_title", "title too long")
	}
	return s, nil
}

func validPriority(p *int) error {
	if p != nil && (*p < minPriority || *p > maxPriority) {
		return fault.InvalidPriority
	}
	return nil
}

func validEstimate(e *int) error {
	if e != nil && *e < 0 {
		return fault.InvalidEstimate
	}
	return nil
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

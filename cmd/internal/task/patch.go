package task

import (
	"tasklist/cmd/internal/fault"
	"tasklist/cmd/internal/model"
)

type changes struct {
	fields          []string
	statusChanged   bool
	assigneeChanged bool
}

type pendingEvent struct {
	typ  model.EventType
	data map[string]any
}

// apply returns t with p applied. It validates every present field but does
// not consult the store.
func (s *Service) apply(t model.Task, p Patch) (model.Task, changes, error) {
	var c changes
	next := t

	if p.Title.Set {
		if p.Title.Null {
			return t, c, fault.InvalidTitle
		}
		title, err := validTitle(p.Title.Value)
		if err != nil {
			return t, c, err
		}
		if title != t.Title {
			next.Title = title
			c.fields = append(c.fields, "title")
		}
	}
	if p.Notes.Set {
		notes := trimPtr(p.Notes.Ptr())
		if !equalPtr(notes, t.Notes) {
			next.Notes = notes
			c.fields = append(c.fields, "notes")
		}
	}
	switch due := NormalizeDueAt(p.DueAt, s.loc); due.Kind {
	case DueInvalid:
		return t, c, fault.InvalidDueAt
	case DueClear:
		if t.DueAt != nil {
			next.DueAt = nil
			c.fields = append(c.fields, "dueAt")
		}
	case DueSet:
		if t.DueAt == nil || *t.DueAt != due.At {
			at := due.At
			next.DueAt = &at
			c.fields = append(c.fields, "dueAt")
		}
	}
	if p.EstimateMinutes.Set {
		est := p.EstimateMinutes.Ptr()
		if err := validEstimate(est); err != nil {
			return t, c, err
		}
		if !equalPtr(est, t.EstimateMinutes) {
			next.EstimateMinutes = est
			c.fields = append(c.fields, "estimateMin")
		}
	}
	if p.Priority.Set {
		pr := p.Priority.Ptr()
		if err := validPriority(pr); err != nil {
			return t, c, err
		}
		if !equalPtr(pr, t.Priority) {
			next.Priority = pr
			c.fields = append(c.fields, "priority")
		}
	}
	if p.AssigneeID.Set {
		a := trimPtr(p.AssigneeID.Ptr())
		if !equalPtr(a, t.AssigneeID) {
			next.AssigneeID = a
			c.assigneeChanged = true
			c.fields = append(c.fields, "assigneeId")
		}
	}
	if p.Status.Set {
		if p.Status.Null {
			return t, c, fault.InvalidStatus
		}
		st, ok := model.ParseTaskStatus(p.Status.Value)
		if !ok {
			return t, c, fault.InvalidStatus
		}
		switch {
		case st == t.Status:
			// done -> done keeps the original completion time
		case st == model.StatusDone:
			at := model.Millis(s.now())
			next.Status, next.CompletedAt = st, &at
			c.statusChanged = true
		default:
			next.Status, next.CompletedAt = st, nil
			c.statusChanged = true
		}
		if c.statusChanged {
			c.fields = append(c.fields, "status")
		}
	}
	return next, c, nil
}

// event picks the single event recorded for an update, or nil when nothing changed.
func (c changes) event(prev, next model.Task) *pendingEvent {
	if len(c.fields) == 0 {
		return nil
	}
	data := map[string]any{"taskId": next.ID, "title": next.Title}
	switch {
	case c.statusChanged:
		data["from"], data["to"] = string(prev.Status), string(next.Status)
		switch {
		case next.Status == model.StatusDone:
			return &pendingEvent{typ: model.EventTaskCompleted, data: data}
		case prev.Status == model.StatusDone:
			return &pendingEvent{typ: model.EventTaskReopened, data: data}
		}
		data["fields"] = c.fields
		return &pendingEvent{typ: model.EventTaskUpdated, data: data}
	case c.assigneeChanged:
		data["assigneeId"] = ptrValue(next.AssigneeID)
		data["previousAssigneeId"] = ptrValue(prev.AssigneeID)
		return &pendingEvent{typ: model.EventTaskReassigned, data: data}
	default:
		data["fields"] = c.fields
		return &pendingEvent{typ: model.EventTaskUpdated, data: data}
	}
}

func ptrValue(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

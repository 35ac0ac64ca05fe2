package model

import "strings"

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusTodo  TaskStatus = "todo"
	StatusDoing TaskStatus = "doing"
	StatusDone  TaskStatus = "done"
)

// ParseTaskStatus returns the canonical status for s.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch st := TaskStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusTodo, StatusDoing, StatusDone:
		return st, true
	default:
		return "", false
	}
}

// Task is a unit of work on a list.
//
// CompletedAt is non-nil exactly when Status is StatusDone.
type Task struct {
	ID              string     `json:"id"`
	ListID          string     `json:"listId"`
	Title           string     `json:"title"`
	Notes           *string    `json:"notes"`
	DueAt           *int64     `json:"dueAt"`
	EstimateMinutes *int       `json:"estimateMin"`
	Priority        *int       `json:"priority"`
	Status          TaskStatus `json:"status"`
	CreatedAt       int64      `json:"createdAt"`
	CompletedAt     *int64     `json:"completedAt"`
	CreatedBy       string     `json:"createdBy"`
	AssigneeID      *string    `json:"assigneeId"`
}

// IsAssignee reports whether userID is the task's current assignee.
func (t Task) IsAssignee(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// Package authz decides whether a user may perform an action on a list or task.
//
// Decide is a pure function over a membership and optional task. Engine
// wraps it with a membership lookup and reports denials as fault.ErrForbidden.
package authz

// Action is a permission-checked operation.
type Action string

const (
	ActionViewList         Action = "list.view"
	ActionUpdateList       Action = "list.update"
	ActionDeleteList       Action = "list.delete"
	ActionViewMembers      Action = "members.view"
	ActionChangeRole       Action = "members.change_role"
	ActionManageInvites    Action = "invites.manage"
	ActionViewTasks        Action = "tasks.view"
	ActionViewHistory      Action = "history.view"
	ActionViewStats        Action = "stats.view"
	ActionCreateTask       Action = "task.create"
	ActionEditTask         Action = "task.edit"
	ActionChangeTaskStatus Action = "task.change_status"
	ActionDeleteTask       Action = "task.delete"
)

// Denial reasons.
const (
	ReasonNotMember     = "forbidden"
	ReasonOwnerOnly     = "owner_required"
	ReasonManagerOnly   = "owner_or_admin_required"
	ReasonNotEditor     = "not_task_editor"
	ReasonNotAssignee   = "not_task_assignee"
	ReasonNotCreator    = "not_task_creator"
	ReasonTaskRequired  = "task_required"
	ReasonUnknownAction = "unknown_action"
)

// IsTaskAction reports whether a evaluates task-level state.
func (a Action) IsTaskAction() bool {
	switch a {
	case ActionEditTask, ActionChangeTaskStatus, ActionDeleteTask:
		return true
	}
	return false
}

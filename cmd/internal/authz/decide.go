package authz

import "tasklist/cmd/internal/model"

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Decide evaluates action for userID holding membership m (nil when the user
// has no membership on the list). Task-level actions require task.
func Decide(m *model.Membership, userID string, action Action, task *model.Task) Decision {
	if m == nil || m.UserID != userID {
		return deny(ReasonNotMember)
	}
	manager := m.Role.IsManager()

	switch action {
	case ActionViewList, ActionViewTasks, ActionViewHistory, ActionViewStats:
		return allow()

	case ActionUpdateList, ActionCreateTask, ActionManageInvites, ActionViewMembers:
		if manager {
			return allow()
		}
		return deny(ReasonManagerOnly)

	case ActionDeleteList, ActionChangeRole:
		if m.Role == model.RoleOwner {
			return allow()
		}
		return deny(ReasonOwnerOnly)
	}

	if !action.IsTaskAction() {
		return deny(ReasonUnknownAction)
	}
	if task == nil {
		return deny(ReasonTaskRequired)
	}
	if task.ListID != m.ListID {
		return deny(ReasonNotMember)
	}
	if manager {
		return allow()
	}

	switch action {
	case ActionEditTask:
		if task.CreatedBy == userID || task.IsAssignee(userID) {
			return allow()
		}
		return deny(ReasonNotEditor)
	case ActionChangeTaskStatus:
		// the creator alone may not move someone else's assigned work
		if task.IsAssignee(userID) {
			return allow()
		}
		return deny(ReasonNotAssignee)
	default: // ActionDeleteTask
		if task.CreatedBy == userID {
			return allow()
		}
		return deny(ReasonNotCreator)
	}
}

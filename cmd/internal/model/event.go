package model

// EventType identifies the kind of activity event.
type EventType string

const (
	EventListCreated       EventType = "list.created"
	EventListUpdated       EventType = "list.updated"
	EventListDeleted       EventType = "list.deleted"
	EventInviteCreated     EventType = "invite.created"
	EventInviteAccepted    EventType = "invite.accepted"
	EventInviteRevoked     EventType = "invite.revoked"
	EventMemberRoleChanged EventType = "member.role_changed"
	EventTaskCreated       EventType = "task.created"
	EventTaskUpdated       EventType = "task.updated"
	EventTaskCompleted     EventType = "task.completed"
	EventTaskReopened      EventType = "task.reopened"
	EventTaskReassigned    EventType = "task.reassigned"
	EventTaskDeleted       EventType = "task.deleted"
)

// EventTypes lists every known event type.
var EventTypes = []EventType{
	EventListCreated,
	EventListUpdated,
	EventListDeleted,
	EventInviteCreated,
	EventInviteAccepted,
	EventInviteRevoked,
	EventMemberRoleChanged,
	EventTaskCreated,
	EventTaskUpdated,
	EventTaskCompleted,
	EventTaskReopened,
	EventTaskReassigned,
	EventTaskDeleted,
}

// Event is an immutable activity record for a list.
//
// Seq is assigned by the store on append and orders events inserted
// within the same millisecond.
type Event struct {
	ID      string         `json:"id"`
	ListID  string         `json:"listId"`
	Seq     int64          `json:"-"`
	Type    EventType      `json:"type"`
	At      int64          `json:"at"`
	ActorID *string        `json:"actorId"`
	Data    map[string]any `json:"data"`
}

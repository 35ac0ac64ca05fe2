package model

// InviteStatus is the lifecycle state of an invite token.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteRevoked  InviteStatus = "revoked"
)

// Invite is a sharable join token for a list.
type Invite struct {
	ID        string       `json:"id"`
	ListID    string       `json:"listId"`
	Email     *string      `json:"email"`
	InvitedBy string       `json:"invitedBy"`
	Token     string       `json:"token"`
	Status    InviteStatus `json:"status"`
	CreatedAt int64        `json:"createdAt"`
}

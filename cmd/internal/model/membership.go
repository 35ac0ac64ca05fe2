package model

import "strings"

// Role is a membership role on a list.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ParseRole returns the canonical role for s.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleOwner, RoleAdmin, RoleMember:
		return r, true
	default:
		return "", false
	}
}

// IsManager reports whether the role is owner or admin.
func (r Role) IsManager() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Membership grants a user a role on a list.
// At most one membership exists per (ListID, UserID).
type Membership struct {
	ID        string `json:"id"`
	ListID    string `json:"listId"`
	UserID    string `json:"userId"`
	Role      Role   `json:"role"`
	CreatedAt int64  `json:"createdAt"`
}

// CountOwners returns the number of owner memberships in ms.
func CountOwners(ms []Membership) int {
	n := 0
	for _, m := range ms {
		if m.Role == RoleOwner {
			n++
		}
	}
	return n
}

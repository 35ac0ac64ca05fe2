package fault

import (
	"errors"
	"fmt"
)

// Error is a typed reason with a stable Code for callers and tests.
// Kind MUST be one of the sentinel kinds.
type Error struct {
	Kind error
	Code string
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

// New returns a reason of the given kind.
func New(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Reasons reported by the core.
var (
	InvalidTitle            = New(ErrInvalidInput, "invalid_title", "title required")
	InvalidDueAt            = New(ErrInvalidInput, "invalid_due_at", "invalid dueAt")
	InvalidRole             = New(ErrInvalidInput, "invalid_role", "invalid role")
	InvalidName             = New(ErrInvalidInput, "invalid_name", "name required")
	InvalidStatus           = New(ErrInvalidInput, "invalid_status", "invalid status")
	InvalidPriority         = New(ErrInvalidInput, "invalid_priority", "priority must be between 1 and 5")
	InvalidEstimate         = New(ErrInvalidInput, "invalid_estimate", "estimate must not be negative")
	InvalidAssignee         = New(ErrInvalidInput, "invalid_assignee", "assignee must be a list member")
	CannotRemoveLastOwner   = New(ErrInvariant, "cannot_remove_last_owner", "cannot remove last owner")
	CannotLeaveWithoutOwner = New(ErrInvariant, "cannot_leave_without_owner", "cannot leave list without an owner")
	InvalidInvite           = New(ErrInvalidInvite, "invalid_invite", "invalid invite")
	EmailInUse              = New(ErrConflict, "email_in_use", "email already in use")
)

// Forbidden returns a Forbidden error; reason becomes the message.
func Forbidden(reason string) *Error {
	if reason == "" {
		reason = "forbidden"
	}
	return New(ErrForbidden, "forbidden", reason)
}

// NotFound returns a NotFound reason for resource.
func NotFound(resource string) *Error {
	return New(ErrNotFound, "not_found", resource+" not found")
}

// Invalid returns an InvalidInput reason.
func Invalid(code, msg string) *Error {
	return New(ErrInvalidInput, code, msg)
}

// OpError annotates an error with the operation that produced it.
type OpError struct {
	Op  string
	Err error
}

func (e OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e OpError) Unwrap() error { return e.Err }

// Op wraps err with op; nil stays nil.
func Op(op string, err error) error {
	if err == nil {
		return nil
	}
	return OpError{Op: op, Err: err}
}

// Code returns the stable code of the first *Error in err's chain.
func Code(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// Message returns the user-facing message of the first *Error in err's chain.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Error()
	}
	return ""
}

// IsForbidden reports whether err represents ErrForbidden.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsInvariant reports whether err represents ErrInvariant.
func IsInvariant(err error) bool { return errors.Is(err, ErrInvariant) }

// IsInvalidInvite reports whether err represents ErrInvalidInvite.
func IsInvalidInvite(err error) bool { return errors.Is(err, ErrInvalidInvite) }

// IsConflict reports whether err represents ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsDomain reports whether err is one of the core's classified errors.
func IsDomain(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

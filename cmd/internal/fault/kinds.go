// Package fault defines the error taxonomy shared by the tracker core.
//
// Kinds are stable for errors.Is and for mapping to API status codes.
// Reasons are *Error values wrapping a kind with a stable code and a
// user-facing message.
package fault

import "errors"

// Sentinel error kinds.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not_found")
	ErrInvalidInput  = errors.New("invalid_input")
	ErrInvariant     = errors.New("invariant_violation")
	ErrInvalidInvite = errors.New("invalid_invite")
	ErrConflict      = errors.New("conflict")
)

package session

import "errors"

var (
	// ErrInvalidToken is returned when a token fails verification or validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when a well-signed token is past its expiry.
	ErrExpiredToken = errors.New("token expired")

	// ErrNoToken is returned when a request carries no session token.
	ErrNoToken = errors.New("no session token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)

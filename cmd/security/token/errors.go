package token

import "errors"

// Public, stable errors for callers.
var (
	ErrTooShort  = errors.New("token length below minimum")
	ErrMalformed = errors.New("token malformed")
)

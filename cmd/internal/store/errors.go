package store

import "errors"

var (
	ErrInvalidInput = errors.New("store: invalid input")
	ErrNotFound     = errors.New("store: not found")
	ErrConflict     = errors.New("store: conflict")
)

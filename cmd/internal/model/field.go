package model

import (
	"bytes"
	"encoding/json"
)

// Field is a patch value that distinguishes "absent", "explicit null", and "set".
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Set returns a Field holding v.
func Set[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a Field holding an explicit null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// Ptr returns nil for an explicit null, otherwise a pointer to a copy of the value.
func (f Field[T]) Ptr() *T {
	if f.Null {
		return nil
	}
	v := f.Value
	return &v
}

// UnmarshalJSON marks the field as present.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		f.Null = true
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(b, &f.Value)
}

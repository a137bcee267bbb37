package session

import "errors"

var (
	// ErrInvalidType is returned by Increment/Decrement when the stored
	// value is not a base-10 integer.
	ErrInvalidType = errors.New("session: value is not numeric")
	// ErrNotFound is returned by operations that require an existing key.
	ErrNotFound = errors.New("session: key not found")
)

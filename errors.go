// Package chatpants - errors.go
// Defines the error taxonomy surfaced by the session controller.
package chatpants

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("conversation not found")
)

// Package apperr defines the sentinel errors shared by the service, API and
// MCP layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidStory    = errors.New("invalid story")
	ErrInvalidPath     = errors.New("invalid path")
	ErrPayloadTooLarge = errors.New("payload too large")
)

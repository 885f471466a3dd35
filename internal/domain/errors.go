// Package domain holds the error taxonomy shared by the storage, registry and
// HTTP layers.
package domain

import "errors"

// Sentinel errors. Every operation of the core fails with an error that wraps
// exactly one of them, so callers branch with errors.Is.
var (
	ErrInvalidPath     = errors.New("invalid path")
	ErrNotFound        = errors.New("not found")
	ErrNotADirectory   = errors.New("not a directory")
	ErrNotAFile        = errors.New("not a file")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrConflict        = errors.New("already exists")
	ErrTooLarge        = errors.New("too large")
	ErrValidation      = errors.New("validation failed")
	ErrInUse           = errors.New("in use")
	ErrForbidden       = errors.New("forbidden")
	ErrStorage         = errors.New("storage failure")
)

// ConflictError represents a collision with an existing resource.
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // file, document, document_type, category, client
	ResourceID   string // Path or id of the existing resource
}

func (e *ConflictError) Error() string {
	return e.Message
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

package folio

import "errors"

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrGone is returned when a record exists but its backing blob is missing
	ErrGone = errors.New("gone")
	// ErrConflict is returned when a unique key is already taken
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the caller's role does not permit the operation
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrTooLarge is returned when an upload exceeds the payload limit
	ErrTooLarge = errors.New("payload too large")
)

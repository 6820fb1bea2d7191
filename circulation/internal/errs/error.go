package errs

import (
	"errors"
)

var (
	// ErrNotFound covers missing and soft-deleted records alike.
	ErrNotFound = errors.New("not found")

	// ErrConflict is a lost race on the item status cell; the caller
	// may retry, the service never does.
	ErrConflict        = errors.New("conflict")
	ErrItemUnavailable = errors.New("item unavailable")
	ErrNotReservable   = errors.New("item not reservable")

	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrReferenceOnly   = errors.New("reference-only items cannot leave the shelf")

	ErrAlreadyReturned = errors.New("loan already returned")
	ErrAlreadyPaid     = errors.New("fine already paid")
)

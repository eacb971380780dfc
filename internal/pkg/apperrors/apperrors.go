package apperrors

import "errors"

var (
	// ErrNotFound is the sentinel for an unknown id handed to a getter.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is the sentinel for malformed input (self-referencing
	// relation, empty role, missing content location).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConstraintViolation is the sentinel for a uniqueness conflict
	// (duplicate relation triple, duplicate run link).
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrInvalidTransition is the sentinel wrapped by
	// provenance.InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

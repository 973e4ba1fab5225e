package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness
	// constraint, such as a duplicate email, username, relationship pair,
	// chapter number, or milestone claim.
	ErrConflict = errors.New("record conflict")
)

package friends

import "errors"

var (
	// ErrNotAuthenticated indicates the registry has no signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidTarget indicates a self-referencing or empty counterpart.
	ErrInvalidTarget = errors.New("invalid target user")
	// ErrDuplicateRelationship indicates a relationship between the pair already exists.
	ErrDuplicateRelationship = errors.New("relationship already exists")
	// ErrStoreUnavailable covers every other store failure.
	ErrStoreUnavailable = errors.New("relationship store unavailable")
)

package shared

import "errors"

// Error categories. Domain packages wrap these with %w so callers classify
// failures using errors.Is only.
var (
	// ErrValidation indicates malformed input such as a non-positive quantity.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates an unknown product, opname batch or record.
	ErrNotFound = errors.New("not found")
	// ErrBusinessRule indicates a request that is well formed but refused by a stock rule.
	ErrBusinessRule = errors.New("business rule violation")
	// ErrStoreUnavailable indicates a transient backing store failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates an authenticated actor lacking the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrPartialWrite indicates a mutation whose first write landed while the
	// outcome of the second is unknown. Retrying could apply it twice.
	ErrPartialWrite = errors.New("partial write")
)

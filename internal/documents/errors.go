package documents

import "errors"

// Business-rule failures are returned as typed negative results; the caller
// maps them to response codes. ErrConcurrencyConflict and ErrPersistence are
// the only error kinds a retry can help with.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
	ErrPersistence         = errors.New("persistence failure")
)

// IsBusinessError reports whether err is an expected business-rule failure
// rather than a storage-level one.
func IsBusinessError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrInvalidTransition)
}

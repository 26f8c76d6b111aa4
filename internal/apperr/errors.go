// Package apperr holds the error kinds shared by the order and inventory
// packages. Callers match them with errors.Is; concrete errors wrap one of
// these sentinels with context.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrInvalidLine       = errors.New("invalid order line")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrConflict          = errors.New("conflict")
	ErrStorage           = errors.New("storage failure")
)

// Kind returns the sentinel err wraps, or nil when it wraps none of them.
func Kind(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrInvalidTransition,
		ErrMalformedPayload,
		ErrInvalidLine,
		ErrInvalidArgument,
		ErrConflict,
		ErrStorage,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

package recurring

import "errors"

var (
	ErrNotFound        = errors.New("series not found")
	ErrInvalidRule     = errors.New("invalid recurrence rule")
	ErrInvalidCategory = errors.New("category cannot recur")
	ErrCancelled       = errors.New("series is cancelled")
	ErrNotActive       = errors.New("series is not active")
	ErrNotPaused       = errors.New("series is not paused")
	ErrForbidden       = errors.New("not a party to this series")
	ErrInternal        = errors.New("internal error")
)

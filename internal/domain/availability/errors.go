package availability

import "errors"

var (
	ErrNotFound     = errors.New("availability window not found")
	ErrInvalidRange = errors.New("window must end after it starts")
	ErrOverlap      = errors.New("window overlaps an existing window")
	ErrInPast       = errors.New("window must end in the future")
	ErrNotOwner     = errors.New("window belongs to another teacher")
	ErrTooLong      = errors.New("window may not exceed 24 hours")

	// ErrUnavailable is returned when no free window covers a requested slot
	ErrUnavailable = errors.New("teacher unavailable")

	ErrInternal = errors.New("internal error")
)

package booking

import "errors"

var (
	ErrNotFound        = errors.New("class not found")
	ErrRequestNotFound = errors.New("slot request not found")

	// ErrTeacherUnavailable is returned when no free availability window covers the slot
	ErrTeacherUnavailable = errors.New("teacher unavailable for this slot")
	// ErrSlotConflict is returned when the slot overlaps a requested or confirmed class
	ErrSlotConflict   = errors.New("slot overlaps an existing class")
	ErrRequestExpired = errors.New("slot request expired")

	ErrInvalidTransition = errors.New("invalid class state transition")
	ErrNotStarted        = errors.New("class has not started yet")
	ErrInvalidSlot       = errors.New("slot must end after it starts and lie in the future")
	ErrInvalidCategory   = errors.New("category cannot be booked")
	ErrForbidden         = errors.New("not a party to this class")

	ErrInternal = errors.New("internal error")
)

package calendar

import "errors"

var (
	ErrInvalidRange = errors.New("range must end after it starts")
	ErrRangeTooLong = errors.New("range may not exceed 62 days")
	ErrInvalidView  = errors.New("view must be day, week or month")
	ErrForbidden    = errors.New("cannot view another user's calendar")
	ErrInternal     = errors.New("internal error")
)

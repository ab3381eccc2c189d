package earnings

import "errors"

var (
	ErrNotFound = errors.New("earnings record not found")

	// ErrAlreadyPaid is returned when paying a record that is not pending
	ErrAlreadyPaid = errors.New("earnings already paid")
	ErrVoided      = errors.New("earnings record voided")

	ErrInvalidRate     = errors.New("hourly rate must be a non-negative amount")
	ErrInvalidCategory = errors.New("invalid rate category")
	ErrStorageDisabled = errors.New("payroll storage not configured")
	ErrForbidden       = errors.New("earnings are visible to teachers and admins only")

	ErrInternal = errors.New("internal error")
)

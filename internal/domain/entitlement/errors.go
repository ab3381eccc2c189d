package entitlement

import "errors"

var (
	// ErrNoEntitlementAvailable is returned when no usable row can be held
	ErrNoEntitlementAvailable = errors.New("no entitlement available")

	ErrNotFound = errors.New("entitlement not found")

	// ErrHoldNotFound is returned when confirm or refund names an unknown hold
	ErrHoldNotFound = errors.New("hold not found")

	// ErrHoldReleased is returned when confirming a hold that was already refunded
	ErrHoldReleased = errors.New("hold already released")

	// ErrOverRefund guards the remaining <= total bound
	ErrOverRefund = errors.New("refund would exceed entitlement total")

	ErrInvalidCategory = errors.New("invalid entitlement category")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrReferenceReused = errors.New("grant reference already used")
	ErrForbidden       = errors.New("not allowed to read this wallet")

	ErrInternal = errors.New("internal error")
)

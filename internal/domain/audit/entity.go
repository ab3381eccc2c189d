package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action kinds written by the booking engine
const (
	ActionSlotRequested     = "slot.requested"
	ActionSlotAccepted      = "slot.accepted"
	ActionSlotDeclined      = "slot.declined"
	ActionSlotExpired       = "slot.expired"
	ActionClassCancelled    = "class.cancelled"
	ActionClassCompleted    = "class.completed"
	ActionClassNoShow       = "class.no_show"
	ActionClassForceBooked  = "class.force_booked"
	ActionEarningsCreated   = "earnings.created"
	ActionEarningsVoided    = "earnings.voided"
	ActionEarningsPaid      = "earnings.paid"
	ActionRateSet           = "rate.set"
	ActionRateDefaulted     = "rate.defaulted"
	ActionEntitlementGrant  = "entitlement.granted"
	ActionSeriesCreated     = "series.created"
	ActionSeriesPaused      = "series.paused"
	ActionSeriesResumed     = "series.resumed"
	ActionSeriesCancelled   = "series.cancelled"
	ActionPaymentFailed     = "series.payment_failed"
	ActionPaymentReset      = "series.payment_reset"
	ActionAvailabilityAdded = "availability.added"
	ActionAvailabilityDrop  = "availability.removed"
	ActionPayrollArchived   = "payroll.archived"
)

// Target types
const (
	TargetClass        = "class"
	TargetSlotRequest  = "slot_request"
	TargetEarnings     = "earnings"
	TargetRate         = "teacher_rate"
	TargetEntitlement  = "entitlement"
	TargetSeries       = "recurrence_series"
	TargetAvailability = "availability_window"
	TargetPayroll      = "payroll"
)

// Entry is one append-only audit record
type Entry struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	ActorID    uuid.NullUUID   `db:"actor_id" json:"actor_id"`
	ActorRole  string          `db:"actor_role" json:"actor_role"`
	Action     string          `db:"action" json:"action"`
	TargetType string          `db:"target_type" json:"target_type"`
	TargetID   uuid.NullUUID   `db:"target_id" json:"target_id"`
	Diff       json.RawMessage `db:"diff" json:"diff,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Filter narrows ListEntries
type Filter struct {
	ActorID    *uuid.UUID
	Action     *string
	TargetType *string
	TargetID   *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// Category scopes what an entitlement can be spent on
type Category string

const (
	CategoryOneToOne    Category = "one_to_one"
	CategoryGroup       Category = "group"
	CategoryVideoCourse Category = "video_course"
	CategoryTrial       Category = "trial"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryOneToOne, CategoryGroup, CategoryVideoCourse, CategoryTrial:
		return true
	}
	return false
}

// Bookable reports whether the category can be held against a lesson
func (c Category) Bookable() bool {
	return c == CategoryOneToOne || c == CategoryGroup || c == CategoryTrial
}

type EntryKind string

const (
	KindGrant      EntryKind = "grant"
	KindHold       EntryKind = "hold"
	KindRefund     EntryKind = "refund"
	KindAdjustment EntryKind = "adjustment"
)

type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusConfirmed EntryStatus = "confirmed"
	StatusFailed    EntryStatus = "failed"
)

// Entitlement is a student's quota of bookable units in one category
type Entitlement struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	StudentID  uuid.UUID  `db:"student_id" json:"student_id"`
	Category   Category   `db:"category" json:"category"`
	Total      int        `db:"total" json:"total"`
	Remaining  int        `db:"remaining" json:"remaining"`
	ValidFrom  *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	Source     string     `db:"source" json:"source"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Usable reports whether the entitlement may be held at the given instant
func (e *Entitlement) Usable(at time.Time) bool {
	if e.Remaining <= 0 {
		return false
	}
	if e.ValidFrom != nil && at.Before(*e.ValidFrom) {
		return false
	}
	if e.ValidUntil != nil && !at.Before(*e.ValidUntil) {
		return false
	}
	if e.ExpiresAt != nil && !at.Before(*e.ExpiresAt) {
		return false
	}
	return true
}

// LedgerEntry is an append-only wallet record; only status may change
type LedgerEntry struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	EntitlementID uuid.UUID   `db:"entitlement_id" json:"entitlement_id"`
	StudentID     uuid.UUID   `db:"student_id" json:"student_id"`
	Kind          EntryKind   `db:"kind" json:"kind"`
	Status        EntryStatus `db:"status" json:"status"`
	Delta         int         `db:"delta" json:"delta"`
	Reference     string      `db:"reference" json:"reference"`
	Reason        *string     `db:"reason" json:"reason,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// Balance compares the stored counter with the one implied by the ledger.
// Holds count whatever their status; only confirmed refunds give units back.
type Balance struct {
	EntitlementID uuid.UUID `db:"entitlement_id" json:"entitlement_id"`
	Total         int       `db:"total" json:"total"`
	Remaining     int       `db:"remaining" json:"remaining"`
	Holds         int       `db:"holds" json:"holds"`
	Refunds       int       `db:"refunds" json:"refunds"`
}

func (b Balance) Expected() int { return b.Total - b.Holds + b.Refunds }

func (b Balance) Consistent() bool { return b.Remaining == b.Expected() }

// GrantInput creates a new entitlement for a student
type GrantInput struct {
	StudentID  uuid.UUID
	Category   Category
	Quantity   int
	ValidFrom  *time.Time
	ValidUntil *time.Time
	ExpiresAt  *time.Time
	Source     string
	Reference  string
}

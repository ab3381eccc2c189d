package notify

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a booking change pushed to connected clients
type EventType string

const (
	EventSlotRequested  EventType = "slot.requested"
	EventSlotAccepted   EventType = "slot.accepted"
	EventSlotDeclined   EventType = "slot.declined"
	EventSlotExpired    EventType = "slot.expired"
	EventClassCancelled EventType = "class.cancelled"
	EventClassCompleted EventType = "class.completed"
	EventClassNoShow    EventType = "class.no_show"
	EventSeriesUpdated  EventType = "series.updated"
)

// Event is delivered to every listed user. It never carries earnings
// figures since students receive the same payload as teachers.
type Event struct {
	Type       EventType   `json:"type"`
	Recipients []uuid.UUID `json:"-"`
	ClassID    uuid.UUID   `json:"class_id,omitempty"`
	SeriesID   uuid.UUID   `json:"series_id,omitempty"`
	Status     string      `json:"status,omitempty"`
	StartsAt   *time.Time  `json:"starts_at,omitempty"`
	EndsAt     *time.Time  `json:"ends_at,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

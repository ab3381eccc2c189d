package calendar

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tutorhub/tutorhub-api/internal/domain/availability"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
)

type lessonSource interface {
	StudentLessons(ctx context.Context, studentID uuid.UUID, from, to, now time.Time) ([]lessonRow, error)
	StaffLessons(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]staffLessonRow, error)
	PendingRequests(ctx context.Context, userID uuid.UUID, from, to, now time.Time) ([]requestRow, error)
}

type windowSource interface {
	ListByTeacher(ctx context.Context, teacherID uuid.UUID, from, to time.Time) ([]availability.Window, error)
}

// Projector builds read-only calendar views
type Projector struct {
	lessons lessonSource
	windows windowSource
	now     func() time.Time
}

func NewProjector(repo *Repository, windows *availability.Repository) *Projector {
	return &Projector{lessons: repo, windows: windows, now: time.Now}
}

// Project returns the user's lessons, open windows and, for teachers and
// admins, pending requests between start and end. Earnings are attached only
// when the viewer is a teacher or admin; students are served from a query
// that never reads them.
func (p *Projector) Project(ctx context.Context, actor identity.Actor, userID uuid.UUID, start, end time.Time) ([]Event, error) {
	if userID == uuid.Nil {
		userID = actor.ID
	}
	if userID != actor.ID && !actor.Privileged() {
		return nil, ErrForbidden
	}
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return nil, ErrInvalidRange
	}
	if end.Sub(start) > maxRange {
		return nil, ErrRangeTooLong
	}

	events := []Event{}

	if actor.SeesEarnings() {
		lessons, err := p.lessons.StaffLessons(ctx, userID, start, end)
		if err != nil {
			return nil, err
		}
		for _, l := range lessons {
			events = append(events, l.event())
		}

		requests, err := p.lessons.PendingRequests(ctx, userID, start, end, p.now().UTC())
		if err != nil {
			return nil, err
		}
		for _, r := range requests {
			events = append(events, r.event())
		}
	} else {
		lessons, err := p.lessons.StudentLessons(ctx, userID, start, end, p.now().UTC())
		if err != nil {
			return nil, err
		}
		for _, l := range lessons {
			events = append(events, l.event())
		}
	}

	windows, err := p.windows.ListByTeacher(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	for _, w := range windows {
		events = append(events, Event{
			ID:        w.ID,
			Kind:      KindAvailability,
			Start:     w.StartsAt.UTC(),
			End:       w.EndsAt.UTC(),
			TeacherID: w.TeacherID,
			Color:     Color(KindAvailability, ""),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return kindOrder[events[i].Kind] < kindOrder[events[j].Kind]
	})
	return events, nil
}

// availability sorts last so lessons draw on top of their window
var kindOrder = map[Kind]int{
	KindLesson:       0,
	KindRequest:      1,
	KindAvailability: 2,
}

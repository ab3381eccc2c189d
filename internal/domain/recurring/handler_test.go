package recurring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tutorhub/tutorhub-api/internal/domain/booking"
	"github.com/tutorhub/tutorhub-api/internal/domain/entitlement"
	"github.com/tutorhub/tutorhub-api/internal/middleware"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
)

func withActor(r *http.Request, actor identity.Actor) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, actor.ID)
	ctx = context.WithValue(ctx, middleware.RoleKey, actor.Role)
	return r.WithContext(ctx)
}

func passThrough(next http.Handler) http.Handler { return next }

func TestCreateSeriesRequestToInput(t *testing.T) {
	req := CreateSeriesRequest{
		TeacherID:       uuid.New(),
		Category:        "one_to_one",
		DayOfWeek:       3,
		StartTime:       "17:30",
		DurationMinutes: 45,
		StartDate:       "2026-11-04",
		EndDate:         "2027-01-27",
	}
	in, errs := req.toInput()
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if in.StartMinute != 17*60+30 {
		t.Fatalf("expected start minute 1050, got %d", in.StartMinute)
	}
	if in.StartDate != date(2026, 11, 4) || in.EndDate == nil || *in.EndDate != date(2027, 1, 27) {
		t.Fatalf("dates not parsed: %v %v", in.StartDate, in.EndDate)
	}

	req.StartTime = "5pm"
	req.EndDate = "27/01/2027"
	_, errs = req.toInput()
	if errs["start_time"] == "" || errs["end_date"] == "" {
		t.Fatalf("expected start_time and end_date errors, got %v", errs)
	}
}

func TestCreateSeriesValidation(t *testing.T) {
	h := NewHandler(&Service{})
	router := h.Routes(passThrough)
	teacher := uuid.NewString()

	tests := []struct {
		name  string
		actor identity.Actor
		body  string
		code  int
	}{
		{
			name:  "teacher cannot create",
			actor: identity.Teacher(uuid.New()),
			body:  `{}`,
			code:  http.StatusForbidden,
		},
		{
			name:  "video course",
			actor: identity.Student(uuid.New()),
			body:  fmt.Sprintf(`{"teacher_id":%q,"entitlement_type":"video_course","day_of_week":1,"start_time":"10:00","duration_minutes":60,"start_date":"2026-11-02"}`, teacher),
			code:  http.StatusUnprocessableEntity,
		},
		{
			name:  "bad clock",
			actor: identity.Student(uuid.New()),
			body:  fmt.Sprintf(`{"teacher_id":%q,"entitlement_type":"one_to_one","day_of_week":1,"start_time":"25:00","duration_minutes":60,"start_date":"2026-11-02"}`, teacher),
			code:  http.StatusUnprocessableEntity,
		},
		{
			name:  "admin without student",
			actor: identity.Admin(uuid.New()),
			body:  fmt.Sprintf(`{"teacher_id":%q,"entitlement_type":"group","day_of_week":1,"start_time":"10:00","duration_minutes":60,"start_date":"2026-11-02"}`, teacher),
			code:  http.StatusUnprocessableEntity,
		},
		{
			name:  "day out of range",
			actor: identity.Student(uuid.New()),
			body:  fmt.Sprintf(`{"teacher_id":%q,"entitlement_type":"group","day_of_week":9,"start_time":"10:00","duration_minutes":60,"start_date":"2026-11-02"}`, teacher),
			code:  http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withActor(httptest.NewRequest("POST", "/", strings.NewReader(tt.body)), tt.actor)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPaymentRoutesRequireAdmin(t *testing.T) {
	h := NewHandler(&Service{})
	router := h.Routes(passThrough)
	id := uuid.NewString()

	for _, path := range []string{"/" + id + "/payment-failure", "/" + id + "/payment-reset"} {
		for _, actor := range []identity.Actor{identity.Student(uuid.New()), identity.Teacher(uuid.New())} {
			req := withActor(httptest.NewRequest("POST", path, nil), actor)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusForbidden {
				t.Fatalf("%s as %s: expected 403, got %d", path, actor.Role, rec.Code)
			}
		}
	}
}

func TestInvalidSeriesID(t *testing.T) {
	h := NewHandler(&Service{})
	router := h.Routes(passThrough)

	req := withActor(httptest.NewRequest("POST", "/nope/pause", nil), identity.Student(uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestServiceGuards(t *testing.T) {
	svc := &Service{}
	ctx := context.Background()
	student := identity.Student(uuid.New())

	if _, err := svc.CreateSeries(ctx, student, CreateInput{StudentID: uuid.New()}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("creating for another student should be forbidden, got %v", err)
	}
	if _, err := svc.HandlePaymentFailure(ctx, student, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("students cannot record payment failures, got %v", err)
	}
	if _, err := svc.ResetPaymentFailure(ctx, identity.Teacher(uuid.New()), uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("teachers cannot reset payment failures, got %v", err)
	}
	if _, err := svc.List(ctx, student, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("listing another user's series should be forbidden, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	s := &Series{StudentID: uuid.New(), TeacherID: uuid.New()}

	allowed := []identity.Actor{
		identity.Student(s.StudentID),
		identity.Teacher(s.TeacherID),
		identity.Admin(uuid.New()),
		identity.System(),
	}
	for _, a := range allowed {
		if err := authorize(a, s); err != nil {
			t.Errorf("%s should be allowed: %v", a.Role, err)
		}
	}

	denied := []identity.Actor{
		identity.Student(s.TeacherID),
		identity.Teacher(s.StudentID),
		identity.Student(uuid.New()),
	}
	for _, a := range denied {
		if err := authorize(a, s); !errors.Is(err, ErrForbidden) {
			t.Errorf("%s %s should be forbidden", a.Role, a.ID)
		}
	}
}

func TestSkipReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{entitlement.ErrNoEntitlementAvailable, "NO_ENTITLEMENT_AVAILABLE"},
		{fmt.Errorf("wrapped: %w", booking.ErrSlotConflict), "SLOT_CONFLICT"},
		{booking.ErrTeacherUnavailable, "TEACHER_UNAVAILABLE"},
		{booking.ErrInvalidSlot, "INVALID_SLOT"},
		{errors.New("connection reset"), "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		if got := skipReason(tt.err); got != tt.want {
			t.Errorf("skipReason(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrInvalidRule, http.StatusBadRequest},
		{ErrCancelled, http.StatusConflict},
		{ErrNotActive, http.StatusConflict},
		{ErrNotPaused, http.StatusConflict},
		{ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: boom", ErrInternal), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tt.err)
		if rec.Code != tt.code {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.code, rec.Code)
		}
	}
}

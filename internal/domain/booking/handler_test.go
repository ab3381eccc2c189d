package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

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

func TestSlotRequestRoutesEnforceRoles(t *testing.T) {
	router := NewHandler(&Service{}).SlotRequestRoutes(passThrough)
	id := uuid.NewString()

	tests := []struct {
		method, path string
		actor        identity.Actor
	}{
		{"POST", "/" + id + "/accept", identity.Student(uuid.New())},
		{"POST", "/" + id + "/decline", identity.Student(uuid.New())},
		{"GET", "/", identity.Student(uuid.New())},
		{"POST", "/", identity.Teacher(uuid.New())},
	}
	for _, tt := range tests {
		req := withActor(httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`)), tt.actor)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s %s as %s: expected 403, got %d", tt.method, tt.path, tt.actor.Role, rec.Code)
		}
	}
}

func TestRequestSlotValidation(t *testing.T) {
	router := NewHandler(&Service{}).SlotRequestRoutes(passThrough)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"video course is not bookable", `{"teacher_id":"%s","start_utc":"2026-11-02T15:00:00Z","end_utc":"2026-11-02T16:00:00Z","entitlement_type":"video_course"}`, "entitlement_type"},
		{"end before start", `{"teacher_id":"%s","start_utc":"2026-11-02T15:00:00Z","end_utc":"2026-11-02T14:00:00Z","entitlement_type":"one_to_one"}`, "end_utc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fmt.Sprintf(tt.body, uuid.NewString())
			req := withActor(httptest.NewRequest("POST", "/", strings.NewReader(body)), identity.Student(uuid.New()))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.field) {
				t.Fatalf("expected error on %s, got %s", tt.field, rec.Body.String())
			}
		})
	}
}

func TestAdminRequestSlotNeedsStudent(t *testing.T) {
	router := NewHandler(&Service{}).SlotRequestRoutes(passThrough)
	body := `{"teacher_id":"` + uuid.NewString() + `","start_utc":"2026-11-02T15:00:00Z","end_utc":"2026-11-02T16:00:00Z","entitlement_type":"one_to_one"}`
	req := withActor(httptest.NewRequest("POST", "/", strings.NewReader(body)), identity.Admin(uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity || !strings.Contains(rec.Body.String(), "student_id") {
		t.Fatalf("expected 422 on student_id, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNoShowValidation(t *testing.T) {
	router := NewHandler(&Service{}).ClassRoutes(passThrough)
	req := withActor(httptest.NewRequest("POST", "/"+uuid.NewString()+"/no-show", strings.NewReader(`{"who":"admin"}`)), identity.Teacher(uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestCompleteRequiresTeacher(t *testing.T) {
	router := NewHandler(&Service{}).ClassRoutes(passThrough)
	req := withActor(httptest.NewRequest("POST", "/"+uuid.NewString()+"/complete", nil), identity.Student(uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestInvalidIDs(t *testing.T) {
	router := NewHandler(&Service{}).ClassRoutes(passThrough)
	req := withActor(httptest.NewRequest("GET", "/not-a-uuid", nil), identity.Student(uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
		tag  string
	}{
		{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{ErrRequestNotFound, http.StatusNotFound, "REQUEST_NOT_FOUND"},
		{ErrSlotConflict, http.StatusConflict, "SLOT_CONFLICT"},
		{ErrTeacherUnavailable, http.StatusConflict, "TEACHER_UNAVAILABLE"},
		{fmt.Errorf("hold: %w", entitlement.ErrNoEntitlementAvailable), http.StatusConflict, "NO_ENTITLEMENT_AVAILABLE"},
		{ErrRequestExpired, http.StatusConflict, "REQUEST_EXPIRED"},
		{ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{ErrNotStarted, http.StatusConflict, "CLASS_NOT_STARTED"},
		{ErrInvalidSlot, http.StatusBadRequest, "BAD_REQUEST"},
		{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, tt.err)
		if rec.Code != tt.code || !strings.Contains(rec.Body.String(), tt.tag) {
			t.Errorf("%v: got %d %s", tt.err, rec.Code, rec.Body.String())
		}
	}
}

func TestInternalErrorsDoNotLeak(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("%w: insert class: pq: relation classes does not exist", ErrInternal))
	if strings.Contains(rec.Body.String(), "pq:") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}

func TestParseListFilter(t *testing.T) {
	series := uuid.New()
	req := httptest.NewRequest("GET", "/classes?status=confirmed,requested&series_id="+series.String()+"&from=2026-11-01T00:00:00Z&page=2&limit=5", nil)

	f, page, err := parseListFilter(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if page != 2 || f.Limit != 5 || f.Offset != 5 {
		t.Fatalf("paging: page=%d limit=%d offset=%d", page, f.Limit, f.Offset)
	}
	if len(f.Status) != 2 || f.Status[0] != ClassConfirmed {
		t.Fatalf("status: %v", f.Status)
	}
	if f.SeriesID == nil || *f.SeriesID != series {
		t.Fatalf("series: %v", f.SeriesID)
	}
	if f.From == nil || f.To != nil {
		t.Fatalf("range: %v %v", f.From, f.To)
	}

	for _, q := range []string{"status=lost", "series_id=x", "to=tomorrow"} {
		if _, _, err := parseListFilter(httptest.NewRequest("GET", "/classes?"+q, nil)); err == nil {
			t.Errorf("expected error for %q", q)
		}
	}
}

func TestListClassesRejectsUnknownRole(t *testing.T) {
	svc := &Service{}
	if _, _, err := svc.ListClasses(context.Background(), identity.Actor{ID: uuid.New(), Role: "guest"}, ListFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestForceBookRequiresAdmin(t *testing.T) {
	svc := &Service{}
	if _, err := svc.ForceBook(context.Background(), identity.Teacher(uuid.New()), SlotInput{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRequestSlotForOtherStudentForbidden(t *testing.T) {
	svc := &Service{}
	_, err := svc.RequestSlot(context.Background(), identity.Student(uuid.New()), SlotInput{StudentID: uuid.New()})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

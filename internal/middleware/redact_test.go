package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tutorhub/tutorhub-api/internal/pkg/response"
)

func calendarPayload(w http.ResponseWriter, r *http.Request) {
	response.OK(w, []map[string]interface{}{
		{
			"id":     "c1",
			"status": "confirmed",
			"earnings": map[string]interface{}{
				"amount_minor": 1500,
				"hourly_rate":  "15.00",
			},
			"meta": map[string]interface{}{"hourly_rate": "15.00", "color": "#2e7d32"},
		},
	})
}

func serveAs(role string, h http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/calendar", nil)
	req = req.WithContext(context.WithValue(req.Context(), RoleKey, role))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRedactEarningsStripsFieldsForStudents(t *testing.T) {
	w := serveAs("student", RedactEarnings(http.HandlerFunc(calendarPayload)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, field := range []string{"earnings", "hourly_rate", "amount_minor"} {
		if strings.Contains(body, field) {
			t.Fatalf("student response leaked %q: %s", field, body)
		}
	}

	var decoded struct {
		Success bool                     `json:"success"`
		Data    []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Success || decoded.Data[0]["status"] != "confirmed" {
		t.Fatalf("non-earnings fields must survive: %+v", decoded)
	}
}

func TestRedactEarningsPassesThroughForTeachers(t *testing.T) {
	for _, role := range []string{"teacher", "admin"} {
		w := serveAs(role, RedactEarnings(http.HandlerFunc(calendarPayload)))
		if !strings.Contains(w.Body.String(), "amount_minor") {
			t.Fatalf("%s response should keep earnings: %s", role, w.Body.String())
		}
	}
}

func TestRedactEarningsKeepsStatusCode(t *testing.T) {
	h := RedactEarnings(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Conflict(w, "slot conflict")
	}))

	w := serveAs("student", h)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

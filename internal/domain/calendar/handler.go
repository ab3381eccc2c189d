package calendar

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/middleware"
	"github.com/tutorhub/tutorhub-api/internal/pkg/response"
)

type Handler struct {
	projector *Projector
}

func NewHandler(projector *Projector) *Handler {
	return &Handler{projector: projector}
}

// Get handles GET /calendar?view=&start=&end=&user_id=
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var userID uuid.UUID
	if v := q.Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "invalid user_id")
			return
		}
		userID = id
	}

	start, end, err := parseRange(q.Get("view"), q.Get("start"), q.Get("end"), time.Now().UTC())
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	events, err := h.projector.Project(r.Context(), middleware.GetActor(r.Context()), userID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, events)
}

// parseRange accepts either an explicit start/end pair or a view anchored
// on start (today when empty)
func parseRange(view, startParam, endParam string, today time.Time) (time.Time, time.Time, error) {
	anchor := today
	if startParam != "" {
		t, err := parseDay(startParam)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("start must be RFC3339 or YYYY-MM-DD")
		}
		anchor = t
	}

	if endParam != "" {
		end, err := parseDay(endParam)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("end must be RFC3339 or YYYY-MM-DD")
		}
		return anchor, end, nil
	}

	if view == "" {
		view = string(ViewWeek)
	}
	return Range(View(view), anchor)
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrRangeTooLong), errors.Is(err, ErrInvalidView):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, err.Error())
	default:
		log.Error().Err(err).Msg("calendar projection failed")
		response.InternalError(w)
	}
}

// Routes mounts /api/v1/calendar. Responses pass through the earnings
// redaction boundary in addition to the projector's own role check.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RedactEarnings)
	r.Get("/", h.Get)
	return r
}

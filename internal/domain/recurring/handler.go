package recurring

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/middleware"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
	"github.com/tutorhub/tutorhub-api/internal/pkg/response"
	"github.com/tutorhub/tutorhub-api/internal/pkg/validator"
)

// CreateSeriesRequest is the payload of POST /series. Times are UTC.
type CreateSeriesRequest struct {
	StudentID       uuid.UUID `json:"student_id,omitempty"`
	TeacherID       uuid.UUID `json:"teacher_id" validate:"required"`
	Category        string    `json:"entitlement_type" validate:"required,bookable"`
	DayOfWeek       int       `json:"day_of_week" validate:"min=0,max=6"`
	StartTime       string    `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=1,max=1440"`
	StartDate       string    `json:"start_date" validate:"required"`
	EndDate         string    `json:"end_date,omitempty"`
}

// toInput parses the clock time and dates of the request
func (req CreateSeriesRequest) toInput() (CreateInput, map[string]string) {
	in := CreateInput{
		StudentID:       req.StudentID,
		TeacherID:       req.TeacherID,
		Category:        req.Category,
		DayOfWeek:       req.DayOfWeek,
		DurationMinutes: req.DurationMinutes,
	}
	errs := map[string]string{}

	if clock, err := time.Parse("15:04", req.StartTime); err != nil {
		errs["start_time"] = "must be HH:MM"
	} else {
		in.StartMinute = clock.Hour()*60 + clock.Minute()
	}
	if d, err := time.Parse("2006-01-02", req.StartDate); err != nil {
		errs["start_date"] = "must be YYYY-MM-DD"
	} else {
		in.StartDate = d
	}
	if req.EndDate != "" {
		if d, err := time.Parse("2006-01-02", req.EndDate); err != nil {
			errs["end_date"] = "must be YYYY-MM-DD"
		} else {
			in.EndDate = &d
		}
	}

	if len(errs) > 0 {
		return in, errs
	}
	return in, nil
}

type GenerateRequest struct {
	WeeksAhead int `json:"weeks_ahead,omitempty" validate:"min=0,max=52"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /series
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSeriesRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	actor := middleware.GetActor(r.Context())
	if actor.IsStudent() {
		req.StudentID = actor.ID
	} else if req.StudentID == uuid.Nil {
		response.ValidationError(w, map[string]string{"student_id": "This field is required"})
		return
	}

	in, errs := req.toInput()
	if errs != nil {
		response.ValidationError(w, errs)
		return
	}

	gen, err := h.svc.CreateSeries(r.Context(), actor, in)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, gen)
}

// List handles GET /series?user_id=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	userID := actor.ID
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "invalid user_id")
			return
		}
		userID = id
	}

	list, err := h.svc.List(r.Context(), actor, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := seriesID(w, r)
	if !ok {
		return
	}
	series, err := h.svc.Get(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, series)
}

// Generate handles POST /series/{id}/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	id, ok := seriesID(w, r)
	if !ok {
		return
	}
	var req GenerateRequest
	if r.ContentLength != 0 {
		if err := response.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, "invalid JSON body")
			return
		}
		if errs := validator.Validate(req); errs != nil {
			response.ValidationError(w, errs)
			return
		}
	}

	gen, err := h.svc.GenerateFuture(r.Context(), middleware.GetActor(r.Context()), id, req.WeeksAhead)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, gen)
}

func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	id, ok := seriesID(w, r)
	if !ok {
		return
	}
	series, err := h.svc.Pause(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, series)
}

func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	id, ok := seriesID(w, r)
	if !ok {
		return
	}
	series, err := h.svc.Resume(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, series)
}

// PaymentFailure handles POST /series/{id}/payment-failure
func (h *Handler) PaymentFailure(w http.ResponseWriter, r *http.Request) {
	id, ok := seriesID(w, r)
	if !ok {
		return
	}
	result, err := h.svc.HandlePaymentFailure(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, result)
}

// PaymentReset handles POST /series/{id}/payment-reset
func (h *Handler) PaymentReset(w http.ResponseWriter, r *http.Request) {
	id, ok := seriesID(w, r)
	if !ok {
		return
	}
	series, err := h.svc.ResetPaymentFailure(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, series)
}

func seriesID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid series id")
		return uuid.Nil, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrInvalidRule), errors.Is(err, ErrInvalidCategory):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrCancelled):
		response.ConflictCode(w, "SERIES_CANCELLED", err.Error())
	case errors.Is(err, ErrNotActive), errors.Is(err, ErrNotPaused):
		response.ConflictCode(w, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, err.Error())
	default:
		log.Error().Err(err).Msg("series request failed")
		response.InternalError(w)
	}
}

// Routes mounts /api/v1/series
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.List)
	r.With(middleware.RequireRole(identity.RoleStudent, identity.RoleAdmin)).Post("/", h.Create)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Post("/generate", h.Generate)
		r.Post("/pause", h.Pause)
		r.Post("/resume", h.Resume)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Post("/payment-failure", h.PaymentFailure)
			r.Post("/payment-reset", h.PaymentReset)
		})
	})
	return r
}

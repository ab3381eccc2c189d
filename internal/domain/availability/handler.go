package availability

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

type CreateWindowRequest struct {
	TeacherID uuid.UUID `json:"teacher_id,omitempty"`
	StartUTC  time.Time `json:"start_utc" validate:"required"`
	EndUTC    time.Time `json:"end_utc" validate:"required,gtfield=StartUTC"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /availability
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateWindowRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	actor := middleware.GetActor(r.Context())
	teacherID := actor.ID
	if actor.IsAdmin() && req.TeacherID != uuid.Nil {
		teacherID = req.TeacherID
	}

	win, err := h.svc.Add(r.Context(), actor, teacherID, req.StartUTC, req.EndUTC)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, win)
}

// List handles GET /availability?teacher_id=&from=&to=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	q := r.URL.Query()

	teacherID := actor.ID
	if v := q.Get("teacher_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "invalid teacher_id")
			return
		}
		teacherID = id
	} else if actor.Role != identity.RoleTeacher {
		response.BadRequest(w, "teacher_id is required")
		return
	}

	from := time.Now().UTC()
	to := from.AddDate(0, 0, 28)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "from must be RFC3339")
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "to must be RFC3339")
			return
		}
		to = t
	}

	windows, err := h.svc.List(r.Context(), teacherID, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, windows)
}

// Delete handles DELETE /availability/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid window id")
		return
	}
	if err := h.svc.Remove(r.Context(), middleware.GetActor(r.Context()), id); err != nil {
		writeError(w, err)
		return
	}
	response.NoContent(w)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrInPast), errors.Is(err, ErrTooLong):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrOverlap):
		response.ConflictCode(w, "WINDOW_OVERLAP", err.Error())
	case errors.Is(err, ErrNotOwner):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, err.Error())
	default:
		log.Error().Err(err).Msg("availability request failed")
		response.InternalError(w)
	}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.List)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(identity.RoleTeacher, identity.RoleAdmin))
		r.Post("/", h.Create)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

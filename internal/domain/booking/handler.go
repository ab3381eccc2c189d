package booking

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/domain/entitlement"
	"github.com/tutorhub/tutorhub-api/internal/middleware"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
	"github.com/tutorhub/tutorhub-api/internal/pkg/response"
	"github.com/tutorhub/tutorhub-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RequestSlot handles POST /slot-requests
func (h *Handler) RequestSlot(w http.ResponseWriter, r *http.Request) {
	var req RequestSlotRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	actor := middleware.GetActor(r.Context())
	studentID := actor.ID
	if actor.IsAdmin() {
		if req.StudentID == uuid.Nil {
			response.ValidationError(w, map[string]string{"student_id": "This field is required"})
			return
		}
		studentID = req.StudentID
	}

	res, err := h.svc.RequestSlot(r.Context(), actor, SlotInput{
		StudentID: studentID,
		TeacherID: req.TeacherID,
		Start:     req.StartUTC,
		End:       req.EndUTC,
		Category:  req.EntitlementType,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, res)
}

// PendingRequests handles GET /slot-requests for the signed-in teacher
func (h *Handler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	teacherID := actor.ID
	if v := r.URL.Query().Get("teacher_id"); v != "" && actor.IsAdmin() {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "invalid teacher_id")
			return
		}
		teacherID = id
	}

	items, err := h.svc.PendingRequests(r.Context(), actor, teacherID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, items)
}

// Accept handles POST /slot-requests/{id}/accept
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid slot request id")
		return
	}

	class, err := h.svc.AcceptSlotRequest(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, class)
}

// Decline handles POST /slot-requests/{id}/decline
func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid slot request id")
		return
	}

	var req DecideRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	class, err := h.svc.DeclineSlotRequest(r.Context(), middleware.GetActor(r.Context()), id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, class)
}

// List handles GET /classes?status=&from=&to=&series_id=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, page, err := parseListFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	classes, total, err := h.svc.ListClasses(r.Context(), middleware.GetActor(r.Context()), f)
	if err != nil {
		writeError(w, err)
		return
	}
	response.WithMeta(w, classes, response.NewMeta(total, page, f.Limit))
}

// Get handles GET /classes/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid class id")
		return
	}

	class, err := h.svc.GetClass(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, class)
}

// Cancel handles POST /classes/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid class id")
		return
	}

	var req CancelRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	class, err := h.svc.CancelClass(r.Context(), middleware.GetActor(r.Context()), id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, class)
}

// Complete handles POST /classes/{id}/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid class id")
		return
	}

	class, err := h.svc.CompleteClass(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, class)
}

// NoShow handles POST /classes/{id}/no-show
func (h *Handler) NoShow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid class id")
		return
	}

	var req NoShowRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	class, err := h.svc.MarkNoShow(r.Context(), middleware.GetActor(r.Context()), id, Party(req.Who))
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, class)
}

// ForceBook handles POST /api/admin/force-book
func (h *Handler) ForceBook(w http.ResponseWriter, r *http.Request) {
	var req ForceBookRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	class, err := h.svc.ForceBook(r.Context(), middleware.GetActor(r.Context()), SlotInput{
		StudentID: req.StudentID,
		TeacherID: req.TeacherID,
		Start:     req.StartUTC,
		End:       req.EndUTC,
		Category:  req.Category,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, class)
}

// decodeOptional accepts an empty body
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := response.DecodeJSON(r.Body, v); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return false
	}
	if errs := validator.Validate(v); errs != nil {
		response.ValidationError(w, errs)
		return false
	}
	return true
}

func parseListFilter(r *http.Request) (ListFilter, int, error) {
	q := r.URL.Query()
	f := ListFilter{Limit: 20}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	if limit, _ := strconv.Atoi(q.Get("limit")); limit > 0 && limit <= 100 {
		f.Limit = limit
	}
	f.Offset = (page - 1) * f.Limit

	if v := q.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			st := ClassStatus(strings.TrimSpace(s))
			switch st {
			case ClassRequested, ClassConfirmed, ClassCancelled, ClassCompleted, ClassNoShow:
				f.Status = append(f.Status, st)
			default:
				return f, page, errors.New("unknown status " + string(st))
			}
		}
	}
	for key, dst := range map[string]**uuid.UUID{"series_id": &f.SeriesID, "teacher_id": &f.TeacherID, "student_id": &f.StudentID} {
		if v := q.Get(key); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, page, errors.New("invalid " + key)
			}
			*dst = &id
		}
	}
	for key, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := q.Get(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, page, errors.New(key + " must be RFC3339")
			}
			*dst = &t
		}
	}
	return f, page, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrRequestNotFound):
		response.Error(w, http.StatusNotFound, "REQUEST_NOT_FOUND", err.Error())
	case errors.Is(err, ErrSlotConflict):
		response.ConflictCode(w, "SLOT_CONFLICT", err.Error())
	case errors.Is(err, ErrTeacherUnavailable):
		response.ConflictCode(w, "TEACHER_UNAVAILABLE", err.Error())
	case errors.Is(err, entitlement.ErrNoEntitlementAvailable):
		response.ConflictCode(w, "NO_ENTITLEMENT_AVAILABLE", err.Error())
	case errors.Is(err, ErrRequestExpired):
		response.ConflictCode(w, "REQUEST_EXPIRED", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		response.ConflictCode(w, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, ErrNotStarted):
		response.ConflictCode(w, "CLASS_NOT_STARTED", err.Error())
	case errors.Is(err, ErrInvalidSlot), errors.Is(err, ErrInvalidCategory):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, err.Error())
	default:
		log.Error().Err(err).Msg("booking request failed")
		response.InternalError(w)
	}
}

// SlotRequestRoutes mounts /api/v1/slot-requests
func (h *Handler) SlotRequestRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.With(middleware.RequireRole(identity.RoleStudent, identity.RoleAdmin)).Post("/", h.RequestSlot)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(identity.RoleTeacher, identity.RoleAdmin))
		r.Get("/", h.PendingRequests)
		r.Post("/{id}/accept", h.Accept)
		r.Post("/{id}/decline", h.Decline)
	})
	return r
}

// ClassRoutes mounts /api/v1/classes
func (h *Handler) ClassRoutes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RedactEarnings)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/no-show", h.NoShow)
	r.With(middleware.RequireRole(identity.RoleTeacher, identity.RoleAdmin)).Post("/{id}/complete", h.Complete)
	return r
}

// AdminRoutes mounts admin booking overrides under /api/admin
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/force-book", h.ForceBook)
}

package earnings

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/tutorhub/tutorhub-api/internal/middleware"
	"github.com/tutorhub/tutorhub-api/internal/pkg/response"
	"github.com/tutorhub/tutorhub-api/internal/pkg/validator"
)

type SetRateRequest struct {
	TeacherID  uuid.UUID       `json:"teacher_id" validate:"required"`
	Category   string          `json:"category" validate:"required,oneof=one_to_one group"`
	HourlyRate decimal.Decimal `json:"hourly_rate"`
	Currency   string          `json:"currency,omitempty" validate:"omitempty,len=3"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Mine handles GET /earnings for the signed-in teacher
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r)
}

// List handles GET /api/admin/earnings
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f, page, err := parseFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	summary, err := h.svc.List(r.Context(), middleware.GetActor(r.Context()), f)
	if err != nil {
		writeError(w, err)
		return
	}
	response.WithMeta(w, summary, response.NewMeta(summary.Total, page, f.Limit))
}

// MarkPaid handles POST /api/admin/earnings/{id}/pay
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid earnings id")
		return
	}

	rec, err := h.svc.MarkPaid(r.Context(), middleware.GetActor(r.Context()), id)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, rec)
}

// SetRate handles PUT /api/admin/rates
func (h *Handler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req SetRateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	rate, err := h.svc.SetRate(r.Context(), middleware.GetActor(r.Context()), req.TeacherID, req.Category, req.HourlyRate, req.Currency)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, rate)
}

// ListRates handles GET /api/admin/rates?teacher_id=
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	var teacherID *uuid.UUID
	if v := r.URL.Query().Get("teacher_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "invalid teacher_id")
			return
		}
		teacherID = &id
	}

	rates, err := h.svc.ListRates(r.Context(), teacherID)
	if err != nil {
		writeError(w, err)
		return
	}
	response.OK(w, rates)
}

// Export handles GET /api/admin/earnings/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	f, _, err := parseFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if _, err := h.svc.ExportPayroll(r.Context(), f, &buf); err != nil {
		writeError(w, err)
		return
	}
	filename := fmt.Sprintf("payroll-%s.csv", time.Now().UTC().Format("20060102"))
	response.Attachment(w, "text/csv", filename, buf.Bytes())
}

// Archive handles POST /api/admin/earnings/archive
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	f, _, err := parseFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	archive, err := h.svc.ArchivePayroll(r.Context(), middleware.GetActor(r.Context()), f)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Created(w, archive)
}

func parseFilter(r *http.Request) (Filter, int, error) {
	q := r.URL.Query()
	f := Filter{Limit: 50}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	if limit, _ := strconv.Atoi(q.Get("limit")); limit > 0 && limit <= 200 {
		f.Limit = limit
	}
	f.Offset = (page - 1) * f.Limit

	if v := q.Get("teacher_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, page, errors.New("invalid teacher_id")
		}
		f.TeacherID = &id
	}
	if v := q.Get("status"); v != "" {
		st := Status(v)
		if st != StatusPending && st != StatusPaid && st != StatusVoided {
			return f, page, errors.New("status must be pending, paid or voided")
		}
		f.Status = &st
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, page, errors.New("from must be RFC3339")
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, page, errors.New("to must be RFC3339")
		}
		f.To = &t
	}
	return f, page, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrAlreadyPaid):
		response.ConflictCode(w, "ALREADY_PAID", err.Error())
	case errors.Is(err, ErrVoided):
		response.ConflictCode(w, "EARNINGS_VOIDED", err.Error())
	case errors.Is(err, ErrInvalidRate), errors.Is(err, ErrInvalidCategory):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrStorageDisabled):
		response.ServiceUnavailable(w, err.Error())
	default:
		log.Error().Err(err).Msg("earnings request failed")
		response.InternalError(w)
	}
}

// Routes mounts the teacher's own earnings under /api/v1/earnings
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireTeacher())
	r.Get("/", h.Mine)
	return r
}

// AdminRoutes mounts rate and payout administration under /api/admin
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/rates", h.ListRates)
	r.Put("/rates", h.SetRate)
	r.Get("/earnings", h.List)
	r.Get("/earnings/export", h.Export)
	r.Post("/earnings/archive", h.Archive)
	r.Post("/earnings/{id}/pay", h.MarkPaid)
}

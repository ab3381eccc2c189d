package entitlement

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/middleware"
	"github.com/tutorhub/tutorhub-api/internal/pkg/response"
	"github.com/tutorhub/tutorhub-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// MyWallet handles GET /wallet
func (h *Handler) MyWallet(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	h.writeWallet(w, r, actor.ID)
}

// MyHistory handles GET /wallet/history
func (h *Handler) MyHistory(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	h.writeHistory(w, r, actor.ID)
}

// StudentWallet handles GET /api/admin/wallets/{studentId}
func (h *Handler) StudentWallet(w http.ResponseWriter, r *http.Request) {
	studentID, err := uuid.Parse(chi.URLParam(r, "studentId"))
	if err != nil {
		response.BadRequest(w, "invalid student id")
		return
	}
	h.writeWallet(w, r, studentID)
}

// StudentHistory handles GET /api/admin/wallets/{studentId}/history
func (h *Handler) StudentHistory(w http.ResponseWriter, r *http.Request) {
	studentID, err := uuid.Parse(chi.URLParam(r, "studentId"))
	if err != nil {
		response.BadRequest(w, "invalid student id")
		return
	}
	h.writeHistory(w, r, studentID)
}

// Grant handles POST /api/admin/entitlements
func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	e, err := h.svc.Grant(r.Context(), middleware.GetActor(r.Context()), req.toInput())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCategory), errors.Is(err, ErrInvalidQuantity):
			response.BadRequest(w, err.Error())
		case errors.Is(err, ErrReferenceReused):
			response.ConflictCode(w, "REFERENCE_REUSED", err.Error())
		default:
			log.Error().Err(err).Msg("grant entitlement failed")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, e)
}

// Reconcile handles GET /api/admin/entitlements/{id}/balance
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid entitlement id")
		return
	}

	b, err := h.svc.Reconcile(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "entitlement not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"balance":    b,
		"expected":   b.Expected(),
		"consistent": b.Consistent(),
	})
}

func (h *Handler) writeWallet(w http.ResponseWriter, r *http.Request, studentID uuid.UUID) {
	items, err := h.svc.Wallet(r.Context(), middleware.GetActor(r.Context()), studentID)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			response.Forbidden(w, err.Error())
			return
		}
		log.Error().Err(err).Msg("load wallet failed")
		response.InternalError(w)
		return
	}
	response.OK(w, toWallet(items, time.Now().UTC()))
}

func (h *Handler) writeHistory(w http.ResponseWriter, r *http.Request, studentID uuid.UUID) {
	page, limit := pagination(r)
	entries, total, err := h.svc.History(r.Context(), middleware.GetActor(r.Context()), studentID, limit, (page-1)*limit)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			response.Forbidden(w, err.Error())
			return
		}
		log.Error().Err(err).Msg("load wallet history failed")
		response.InternalError(w)
		return
	}
	response.WithMeta(w, entries, response.NewMeta(total, page, limit))
}

func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// Routes mounts the student wallet under /api/v1/wallet
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireStudent())
	r.Get("/", h.MyWallet)
	r.Get("/history", h.MyHistory)
	return r
}

// AdminRoutes mounts wallet administration under /api/admin
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/entitlements", h.Grant)
	r.Get("/entitlements/{id}/balance", h.Reconcile)
	r.Get("/wallets/{studentId}", h.StudentWallet)
	r.Get("/wallets/{studentId}/history", h.StudentHistory)
}

package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/pkg/response"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /api/admin/audit
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, page, limit, err := parseFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	entries, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("list audit logs failed")
		response.InternalError(w)
		return
	}

	response.WithMeta(w, entries, response.NewMeta(total, page, limit))
}

type filterError string

func (e filterError) Error() string { return string(e) }

func parseFilter(r *http.Request) (Filter, int, int, error) {
	q := r.URL.Query()
	f := Filter{}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	f.Limit = limit
	f.Offset = (page - 1) * limit

	if v := q.Get("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, 0, 0, filterError("invalid actor_id")
		}
		f.ActorID = &id
	}
	if v := q.Get("target_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, 0, 0, filterError("invalid target_id")
		}
		f.TargetID = &id
	}
	if v := q.Get("action"); v != "" {
		f.Action = &v
	}
	if v := q.Get("target_type"); v != "" {
		f.TargetType = &v
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, 0, 0, filterError("from must be RFC3339")
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, 0, 0, filterError("to must be RFC3339")
		}
		f.To = &t
	}
	return f, page, limit, nil
}

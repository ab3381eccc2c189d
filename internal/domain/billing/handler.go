package billing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tutorhub/tutorhub-api/internal/domain/recurring"
	"github.com/tutorhub/tutorhub-api/internal/pkg/identity"
	"github.com/tutorhub/tutorhub-api/internal/pkg/response"
	"github.com/tutorhub/tutorhub-api/internal/pkg/validator"
)

const maxBody = 64 << 10

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// PaymentEvent is a subscription renewal outcome for one series
type PaymentEvent struct {
	EventID    string    `json:"event_id" validate:"required,max=200"`
	SeriesID   uuid.UUID `json:"series_id" validate:"required"`
	Status     string    `json:"status" validate:"required,oneof=succeeded failed"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SeriesPayments is what a renewal outcome drives
type SeriesPayments interface {
	HandlePaymentFailure(ctx context.Context, actor identity.Actor, seriesID uuid.UUID) (*recurring.FailureResult, error)
	ResetPaymentFailure(ctx context.Context, actor identity.Actor, seriesID uuid.UUID) (*recurring.Series, error)
}

type Handler struct {
	series SeriesPayments
	dedupe Deduper
	secret string
}

func NewHandler(series SeriesPayments, dedupe Deduper, secret string) *Handler {
	return &Handler{series: series, dedupe: dedupe, secret: secret}
}

// PaymentWebhook handles POST /webhooks/payments
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil || len(body) > maxBody {
		response.BadRequest(w, "invalid body")
		return
	}
	if !VerifySignature(body, r.Header.Get(SignatureHeader), h.secret) {
		log.Warn().Str("remote", r.RemoteAddr).Msg("payment event with bad signature")
		response.Unauthorized(w, "invalid signature")
		return
	}

	var ev PaymentEvent
	if err := response.DecodeJSON(io.NopCloser(bytes.NewReader(body)), &ev); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(ev); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	claimed, err := h.dedupe.Claim(r.Context(), ev.EventID)
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.EventID).Msg("payment event dedupe failed")
		response.InternalError(w)
		return
	}
	if !claimed {
		log.Info().Str("event_id", ev.EventID).Msg("duplicate payment event ignored")
		response.OK(w, map[string]string{"status": "duplicate"})
		return
	}

	result, err := h.apply(r.Context(), ev)
	if err != nil {
		switch {
		case errors.Is(err, recurring.ErrNotFound):
			response.NotFound(w, err.Error())
		default:
			// let the provider redeliver
			h.dedupe.Release(r.Context(), ev.EventID)
			log.Error().Err(err).Str("event_id", ev.EventID).Str("series_id", ev.SeriesID.String()).Msg("payment event failed")
			response.InternalError(w)
		}
		return
	}
	response.OK(w, result)
}

func (h *Handler) apply(ctx context.Context, ev PaymentEvent) (interface{}, error) {
	actor := identity.System()

	if ev.Status == StatusFailed {
		return h.series.HandlePaymentFailure(ctx, actor, ev.SeriesID)
	}

	series, err := h.series.ResetPaymentFailure(ctx, actor, ev.SeriesID)
	if errors.Is(err, recurring.ErrCancelled) {
		log.Info().Str("series_id", ev.SeriesID.String()).Msg("renewal for cancelled series ignored")
		return map[string]string{"status": "ignored"}, nil
	}
	return series, err
}

// Routes mounts /webhooks. Requests are authenticated by signature only.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/payments", h.PaymentWebhook)
	return r
}

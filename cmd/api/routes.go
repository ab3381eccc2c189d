package main

import (
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tutorhub/tutorhub-api/internal/config"
	"github.com/tutorhub/tutorhub-api/internal/domain/audit"
	"github.com/tutorhub/tutorhub-api/internal/domain/availability"
	"github.com/tutorhub/tutorhub-api/internal/domain/billing"
	"github.com/tutorhub/tutorhub-api/internal/domain/booking"
	"github.com/tutorhub/tutorhub-api/internal/domain/calendar"
	"github.com/tutorhub/tutorhub-api/internal/domain/earnings"
	"github.com/tutorhub/tutorhub-api/internal/domain/entitlement"
	"github.com/tutorhub/tutorhub-api/internal/domain/notify"
	"github.com/tutorhub/tutorhub-api/internal/domain/recurring"
	"github.com/tutorhub/tutorhub-api/internal/middleware"
	pkgresponse "github.com/tutorhub/tutorhub-api/internal/pkg/response"
)

type handlers struct {
	booking      *booking.Handler
	availability *availability.Handler
	series       *recurring.Handler
	calendar     *calendar.Handler
	wallet       *entitlement.Handler
	earnings     *earnings.Handler
	audit        *audit.Handler
	feed         *notify.Handler
	webhooks     *billing.Handler
}

func newRouter(cfg *config.Config, h handlers, authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		// WebSocket endpoint, token may come as ?access_token
		r.With(authMiddleware).Get("/ws", h.feed.WebSocket)

		r.Mount("/slot-requests", h.booking.SlotRequestRoutes(authMiddleware))
		r.Mount("/classes", h.booking.ClassRoutes(authMiddleware))
		r.Mount("/availability", h.availability.Routes(authMiddleware))
		r.Mount("/series", h.series.Routes(authMiddleware))
		r.Mount("/calendar", h.calendar.Routes(authMiddleware))
		r.Mount("/wallet", h.wallet.Routes(authMiddleware))
		r.Mount("/earnings", h.earnings.Routes(authMiddleware))
	})

	r.Mount("/webhooks", h.webhooks.Routes())

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin())

		h.booking.AdminRoutes(r)
		h.earnings.AdminRoutes(r)
		h.wallet.AdminRoutes(r)
		r.Get("/audit", h.audit.List)
		r.Handle("/debug/vars", expvar.Handler())
	})

	return r
}

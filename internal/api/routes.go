package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(m.CORS(corsOrigins))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(m.RateLimit(rateLimitRPM))

		// Live updates hold the connection open, so they skip the timeout and gzip.
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/stream", h.HandleSSE)

		r.Group(func(r chi.Router) {
			r.Use(m.Compress)
			r.Use(m.Timeout(15 * time.Second))

			r.Route("/pairs", func(r chi.Router) {
				r.Get("/", h.ListPairs)
				r.Get("/lookup", h.LookupPair)
				r.Get("/find", h.FindPairs)
				r.Get("/{id}", h.GetPair)
			})

			r.Route("/perpetuals", func(r chi.Router) {
				r.Get("/", h.ListPerpetuals)
				r.Get("/{id}", h.GetPerpetual)
			})

			r.Route("/trade", func(r chi.Router) {
				r.Get("/margin/config", h.GetMarginConfig)
				r.Post("/margin/preview", h.PreviewMargin)
				r.Post("/perpetual/preview", h.PreviewPerpetual)
			})

			r.Route("/maintenance", func(r chi.Router) {
				r.Get("/", h.GetMaintenance)
				r.With(m.AdminOnly).Put("/{state}", h.SetMaintenance)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/{address}/positions", h.GetUserPositions)
				r.Post("/{address}/positions", h.OpenUserPosition)
			})
		})
	})

	return r
}

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vogiaan1904/clinicqueue-sync/pkg/logger"
)

// NewRouter mounts the dashboard API. metricsHandler may be nil.
func NewRouter(h *HTTPHandler, l logger.Logger, metricsHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logger.HTTPLogger(l))

	r.Get("/healthz", h.HealthCheck)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/view", h.GetView)
		r.Get("/status", h.GetStatus)
		r.Put("/selection", h.UpdateSelection)
		r.Delete("/banner", h.DismissError)

		r.Post("/doctors/{doctorId}/call-next", h.CallNext)
		r.Post("/doctors/{doctorId}/complete", h.CompleteCurrent)
		r.Post("/tokens/{tokenId}/priority", h.UpdatePriority)

		r.Post("/push/reset", h.ResetPush)
	})

	return r
}

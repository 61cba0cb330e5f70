// Package api exposes the resize pipeline and the conversion dispatcher over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/file-converter/internal/config"
	"github.com/spherical/file-converter/internal/convert"
	"github.com/spherical/file-converter/internal/observability"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(cfg *config.Config, dispatcher *convert.Dispatcher, logger *observability.Logger) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	h := &Handler{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger.WithComponent("api"),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.Server.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/kinds", h.Kinds)
		r.Post("/resize", h.Resize)
		r.Post("/convert/{kind}", h.Convert)
	})

	return r
}

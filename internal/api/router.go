package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"version-gate/internal/observability"
)

type RouterOptions struct {
	Limiter        *RateLimiter
	RequestTimeout time.Duration
}

func Router(h *VersionHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Group(func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(RateLimit(opts.Limiter))
		}
		r.Use(RequireAPIKey(h.Gate))
		r.Post("/v1/sdk/version/check", h.Check)
		r.Post("/sdk/version/check", h.Check)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", h.Ready)
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"version-gate/internal/observability"
)

const apiKeyHeader = "x-api-key"

type ctxKey struct{}

func appIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// RequireAPIKey resolves the x-api-key header to an app id and stores it on
// the request context.
func RequireAPIKey(g Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(apiKeyHeader)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Missing API key")
				return
			}
			appID, err := g.Authenticate(r.Context(), token)
			if err != nil {
				status, msg := statusFor(err)
				if status == http.StatusInternalServerError {
					log.Error().Err(err).Msg("api key lookup failed")
				}
				writeError(w, status, msg)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, appID)))
		})
	}
}

// RateLimit rejects clients that exceed the per-IP budget. RealIP must run
// first for proxied deployments.
func RateLimit(l *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(ExtractIP(r.RemoteAddr)) {
				observability.RequestErrors.WithLabelValues("rate_limited").Inc()
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger writes one zerolog line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		ev := log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("remote", r.RemoteAddr).
			Msg("http request")
	})
}

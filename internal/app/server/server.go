// Package server wires storage, the gate, the HTTP API and the background
// refreshers into a running process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"version-gate/internal/api"
	"version-gate/internal/config"
	"version-gate/internal/engine"
	"version-gate/internal/gate"
	"version-gate/internal/listener"
	"version-gate/internal/observability"
	"version-gate/internal/storage"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	checker *gate.Checker
	limiter *api.RateLimiter
	handler http.Handler
}

// New builds a server on top of the given rule and key stores. The rate
// limiter lives until ctx is done.
func New(ctx context.Context, cfg config.Config, loader gate.SnapshotLoader, keys gate.KeyStore) *Server {
	checker := gate.NewChecker(engine.New(), loader, keys,
		gate.WithKeyCache(storage.NewKeyCache(cfg.KeyCacheTTL())),
		gate.WithObserver(observability.Recorder{}),
	)
	limiter := api.NewRateLimiter(ctx, cfg.RateLimit.RequestsPerMinute)
	h := api.NewVersionHandler(checker)
	return &Server{
		checker: checker,
		limiter: limiter,
		handler: api.Router(h, api.RouterOptions{Limiter: limiter, RequestTimeout: cfg.Server.RequestTimeout}),
	}
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Checker() *gate.Checker { return s.checker }

// StartCacheRefresher loads the catalog immediately and then on every tick,
// as a safety net for missed notifications.
func (s *Server) StartCacheRefresher(ctx context.Context, interval time.Duration) {
	refresh := func() {
		if err := s.checker.Refresh(ctx); err != nil {
			observability.RequestErrors.WithLabelValues("catalog_refresh").Inc()
			log.Error().Err(err).Msg("catalog refresh failed; keeping previous catalog")
		}
	}
	refresh()
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()
}

// notifyChannelMatches reports whether channel is the one the migration
// triggers notify on. A mismatch leaves only the periodic refresher.
func notifyChannelMatches(channel string) bool {
	if channel == storage.NotifyChannel {
		return true
	}
	log.Warn().
		Str("channel", channel).
		Str("trigger_channel", storage.NotifyChannel).
		Msg("listener channel differs from the trigger channel; changes are picked up by the periodic refresh only")
	return false
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config) error {
	shutdownTracer, err := observability.InitTracing(ctx)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shCtx); err != nil {
			log.Error().Err(err).Msg("tracer shutdown")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()
	observability.RegisterPoolMetrics(prometheus.DefaultRegisterer, store.PgxPool())

	s := New(ctx, cfg, store, store)
	s.StartCacheRefresher(ctx, cfg.RefreshInterval())

	notifyChannelMatches(store.ListenChannel())
	go listener.ListenAndRefresh(ctx, store.PgxPool(), s.checker, store.ListenChannel(), cfg.Backoff())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           otelhttp.NewHandler(s.handler, "version-gate-http"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutdown...")

	shCtx, shCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shCancel()
	cancel()
	s.limiter.Stop()
	return srv.Shutdown(shCtx)
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"version-gate/internal/engine"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_gate_requests_total",
			Help: "Total HTTP requests by route and status code",
		}, []string{"route", "code"},
	)
	Latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "version_gate_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "version_gate_in_flight",
		Help: "In-flight HTTP requests",
	})
	RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_gate_request_errors_total",
			Help: "Total errors by type",
		}, []string{"type"},
	)
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_gate_evaluations_total",
			Help: "Version check results by status",
		}, []string{"status"},
	)
	CatalogRules = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "version_gate_catalog_rules",
		Help: "Active rules in the loaded catalog",
	})
	CatalogApps = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "version_gate_catalog_apps",
		Help: "Apps in the loaded catalog",
	})
	CatalogLoadedAt = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "version_gate_catalog_loaded_timestamp_seconds",
		Help: "Unix time of the last successful catalog load",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight, RequestErrors,
		EvaluationsTotal, CatalogRules, CatalogApps, CatalogLoadedAt)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

// Recorder feeds checker events into the package metrics.
type Recorder struct{}

func (Recorder) Evaluated(status engine.Status) {
	EvaluationsTotal.WithLabelValues(string(status)).Inc()
}

func (Recorder) CatalogLoaded(apps, rules int, loadedAt time.Time) {
	CatalogApps.Set(float64(apps))
	CatalogRules.Set(float64(rules))
	CatalogLoadedAt.Set(float64(loadedAt.UnixNano()) / 1e9)
}

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Measure records latency and status per chi route pattern.
func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		Latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(route, strconv.Itoa(rr.code)).Inc()
	})
}

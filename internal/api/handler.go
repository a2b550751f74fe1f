package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"version-gate/internal/engine"
	"version-gate/internal/gate"
	"version-gate/internal/observability"
)

const maxBodyBytes = 64 << 10

// Gate is the subset of *gate.Checker the HTTP layer needs.
type Gate interface {
	Authenticate(ctx context.Context, token string) (string, error)
	Check(ctx context.Context, appID string, req gate.CheckRequest) (engine.EvaluationResult, error)
	Ready() bool
}

type VersionHandler struct {
	Gate Gate
}

func NewVersionHandler(g Gate) *VersionHandler {
	return &VersionHandler{Gate: g}
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Success: false, Message: msg})
}

// Check handles POST /v1/sdk/version/check.
func (h *VersionHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req gate.CheckRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		observability.RequestErrors.WithLabelValues("decode").Inc()
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.Gate.Check(r.Context(), appIDFrom(r.Context()), req)
	if err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error().Err(err).Msg("version check failed")
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *VersionHandler) Ready(w http.ResponseWriter, _ *http.Request) {
	if !h.Gate.Ready() {
		writeError(w, http.StatusServiceUnavailable, gate.ErrCatalogNotReady.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// statusFor maps checker errors onto HTTP status and the client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, gate.ErrInvalidRequest):
		observability.RequestErrors.WithLabelValues("validation").Inc()
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, gate.ErrInvalidAPIKey):
		observability.RequestErrors.WithLabelValues("auth").Inc()
		return http.StatusUnauthorized, "Invalid API key"
	case errors.Is(err, gate.ErrAppMismatch):
		observability.RequestErrors.WithLabelValues("app_mismatch").Inc()
		return http.StatusForbidden, "API key does not belong to this app"
	case errors.Is(err, gate.ErrCatalogNotReady):
		observability.RequestErrors.WithLabelValues("not_ready").Inc()
		return http.StatusServiceUnavailable, "Service not ready"
	default:
		observability.RequestErrors.WithLabelValues("internal").Inc()
		return http.StatusInternalServerError, "Internal server error"
	}
}

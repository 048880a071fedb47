package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vultr-power/gateway/internal/infra"
	"github.com/vultr-power/gateway/internal/models"
	"github.com/vultr-power/gateway/internal/provider"
	"github.com/vultr-power/gateway/internal/service"
)

// Handlers contains HTTP handler functions
type Handlers struct {
	service *service.Service
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{service: svc}
}

// Health handles health check requests
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Status handles GET /status
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "status", h.service.Status)
}

// Start handles POST /start
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "start", h.service.Start)
}

// Shutdown handles POST /shutdown
func (h *Handlers) Shutdown(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "shutdown", h.service.Shutdown)
}

// Apply handles POST /apply
func (h *Handlers) Apply(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "apply", h.service.Apply)
}

// Destroy handles POST /destroy
func (h *Handlers) Destroy(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "destroy", h.service.Destroy)
}

func (h *Handlers) run(w http.ResponseWriter, r *http.Request, name string, fn func(context.Context) (models.Envelope, error)) {
	logger := GetLogger(r.Context())

	if logger != nil {
		logger.Debug("handling control request", "action", name)
	}

	env, err := fn(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if logger != nil {
		logger.Info("control request succeeded", "action", name, "status", env.Status)
	}
	writeJSON(w, r, http.StatusOK, env)
}

// writeJSON writes v as the JSON response body
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if requestID := GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		if logger := GetLogger(r.Context()); logger != nil {
			logger.Error("failed to encode response", "error", err)
		}
	}
}

// respondError writes the error envelope with logging
func respondError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	logger := GetLogger(r.Context())

	if logger != nil {
		logger.Error("returning error response",
			"status", status,
			"detail", detail,
			"request_id", GetRequestID(r.Context()))
	}

	writeJSON(w, r, status, models.ErrorEnvelope(detail))
}

// handleServiceError maps service errors to HTTP responses
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := GetLogger(r.Context())

	if logger != nil {
		logger.Error("service error occurred",
			"error", err.Error(),
			"error_type", fmt.Sprintf("%T", err))
	}

	var providerErr *provider.ProviderError
	var toolErr *infra.ToolError

	switch {
	case errors.Is(err, infra.ErrIdentifierUnavailable):
		respondError(w, r, http.StatusInternalServerError, "Server ID not found")
	case errors.As(err, &providerErr):
		// Passed through verbatim unless the code cannot carry a body
		code := providerErr.Code
		if !bodyAllowed(code) {
			code = http.StatusBadGateway
		}
		respondError(w, r, code, providerErr.Message)
	case errors.Is(err, provider.ErrMalformedResponse):
		respondError(w, r, http.StatusInternalServerError, "malformed provider response")
	case errors.Is(err, provider.ErrProviderUnavailable):
		respondError(w, r, http.StatusBadGateway, "provider temporarily unavailable")
	case errors.As(err, &toolErr):
		respondError(w, r, http.StatusInternalServerError, toolErr.Error())
	default:
		respondError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func bodyAllowed(code int) bool {
	switch {
	case code < 200 || code > 599:
		return false
	case code == http.StatusNoContent, code == http.StatusNotModified:
		return false
	}
	return true
}

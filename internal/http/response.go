package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/storefront-cart/internal/logger"
	"github.com/fjod/storefront-cart/internal/service"
	"go.uber.org/zap"
)

// Envelope is the body of every response.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.FromCtx(r.Context()).Warn("failed to encode response", zap.Error(err))
	}
}

func respondData(w http.ResponseWriter, r *http.Request, data interface{}) {
	respondJSON(w, r, http.StatusOK, Envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, Envelope{Success: false, Message: message})
}

// handleServiceError converts a service error into a response. Unknown errors
// are logged and answered with a generic message.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromCtx(r.Context()).Error("request failed", zap.Error(err))
		respondError(w, r, status, "internal server error")
		return
	}
	respondError(w, r, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidColorSelection),
		errors.Is(err, service.ErrAmbiguousCartItem):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrCartItemNotFound),
		errors.Is(err, service.ErrCartNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, service.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

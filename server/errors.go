package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/jonwraymond/inferq/auth"
	"github.com/jonwraymond/inferq/coalesce"
	"github.com/jonwraymond/inferq/fingerprint"
	"github.com/jonwraymond/inferq/predict"
	"github.com/jonwraymond/inferq/registry"
)

// errorBody is the JSON body of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// classify maps an error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, fingerprint.ErrInvalidInput), errors.Is(err, fingerprint.ErrInvalidModel):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, registry.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, coalesce.ErrStaleInFlight):
		return http.StatusBadGateway, "stale_in_flight"
	case errors.Is(err, predict.ErrInference):
		return http.StatusBadGateway, "inference_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "canceled"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case auth.IsRejection(err):
		return http.StatusUnauthorized, "unauthenticated"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"modelzoo/internal/fetch"
	"modelzoo/internal/imgcodec"
	"modelzoo/internal/imgmodel"
	"modelzoo/internal/manager"
	"modelzoo/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	var se *fetch.StatusError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case manager.IsModelNotFound(err), errors.Is(err, fetch.ErrUnknownPrecision):
		return http.StatusNotFound
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests
	case manager.IsBudgetExceeded(err), manager.IsDependencyUnavailable(err), errors.Is(err, imgmodel.ErrRuntimeUnavailable):
		return http.StatusServiceUnavailable
	case fetch.IsIntegrityError(err), errors.As(err, &se):
		return http.StatusBadGateway
	case errors.Is(err, imgcodec.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imgmodel.ErrShapeUnsupported), errors.Is(err, imgcodec.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger().Error().Err(err).Msg("encode response")
	}
}

// Package apierr defines the caller-observable error taxonomy shared by every
// service in the control plane. Each sentinel maps to exactly one HTTP status
// at the gateway boundary; internal layers return these errors (optionally
// wrapped with fmt.Errorf's %w) and never a bare string.
package apierr

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrRateLimited     = errors.New("rate limited")
	ErrBadRequest      = errors.New("bad request")

	ErrModelNotFound      = errors.New("model not found")
	ErrModelAlreadyExists = errors.New("model already exists")
	ErrModelTooLarge      = errors.New("model too large")
	ErrInvalidModelData   = errors.New("invalid model data")
	ErrInvalidMetadata    = errors.New("invalid metadata")
	ErrIntegrityMismatch  = errors.New("integrity mismatch")

	ErrNoWorkersAvailable         = errors.New("no workers available")
	ErrNoWorkersMatchRequirements = errors.New("no workers match requirements")

	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrModelNotAvailable  = errors.New("model not available")
	ErrInferenceTimeout   = errors.New("inference timed out")
	ErrExecutionError     = errors.New("execution error")
	ErrTransportError     = errors.New("transport error")
	ErrUnavailable        = errors.New("unavailable")
	ErrWorkerAlreadyExist = errors.New("worker already registered")
)

// HTTPStatus maps a taxonomy error to the status code the gateway should
// answer with. Errors not in the taxonomy map to 500 — never leak the
// underlying message to the client in that case.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrInvalidModelData),
		errors.Is(err, ErrInvalidMetadata):
		return http.StatusBadRequest
	case errors.Is(err, ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrModelAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrModelTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInferenceTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrNoWorkersAvailable),
		errors.Is(err, ErrNoWorkersMatchRequirements),
		errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrModelNotAvailable),
		errors.Is(err, ErrExecutionError),
		errors.Is(err, ErrTransportError),
		errors.Is(err, ErrIntegrityMismatch):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// taxonomy lists every sentinel FromMessage matches against, most specific
// first where messages could otherwise collide.
var taxonomy = []error{
	ErrUnauthenticated, ErrForbidden, ErrRateLimited, ErrBadRequest,
	ErrModelAlreadyExists, ErrModelNotFound, ErrModelTooLarge, ErrInvalidModelData, ErrInvalidMetadata, ErrIntegrityMismatch,
	ErrNoWorkersMatchRequirements, ErrNoWorkersAvailable,
	ErrCapacityExceeded, ErrModelNotAvailable, ErrInferenceTimeout, ErrExecutionError, ErrWorkerAlreadyExist, ErrUnavailable, ErrTransportError,
}

// FromMessage recovers the taxonomy sentinel embedded in a peer's error
// message, e.g. the "error" field of a JSON response written by writeError.
// Call sites that only see a remote's serialized error text (HTTP responses)
// use this to reconstruct a structured error instead of collapsing every
// remote failure into one generic class.
func FromMessage(raw string) (error, bool) {
	for _, sentinel := range taxonomy {
		if strings.Contains(raw, sentinel.Error()) {
			return sentinel, true
		}
	}
	return nil, false
}

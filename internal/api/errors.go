package api

import (
	"net/http"

	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
)

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      uint32 `json:"code"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// statusOf maps an error's root to an HTTP status.
func statusOf(root *errors.Error) int {
	switch root {
	case errors.ErrInvalidKeySet, errors.ErrInvalidRequest:
		return http.StatusBadRequest
	case errors.ErrIdempotencyMismatch:
		return http.StatusUnprocessableEntity
	case errors.ErrCacheMiss:
		return http.StatusNotFound
	case errors.ErrCompile:
		return http.StatusServiceUnavailable
	case errors.ErrConnect, errors.ErrSubmit:
		return http.StatusBadGateway
	case errors.ErrOutcomeUnknown, errors.ErrInFlight, errors.ErrImmutable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as an error body and returns the status used.
func writeError(w http.ResponseWriter, err error) int {
	root := errors.Root(err)
	status := statusOf(root)
	msg := err.Error()
	if root == errors.ErrInternal {
		msg = root.Error()
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Code:      root.Code(),
		Category:  root.Category(),
		Message:   msg,
		Retryable: root.Retryable(),
	}})
	return status
}

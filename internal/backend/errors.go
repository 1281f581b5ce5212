package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrTimeout indicates a request exceeded its deadline.
	ErrTimeout = errors.New("backend request timed out")

	// ErrRejected indicates the backend answered with a client error
	// (validation failure, unknown entry id, bad status).
	ErrRejected = errors.New("backend rejected the request")

	// ErrRetryExhausted indicates all retry attempts failed.
	ErrRetryExhausted = errors.New("backend retry attempts exhausted")

	// ErrInvalidResponse indicates a response body could not be decoded
	// into the expected shape.
	ErrInvalidResponse = errors.New("invalid backend response")
)

// StatusError carries the HTTP status and body of a failed call.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies 4xx responses as rejections.
func (e *StatusError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return ErrRejected
	}
	return nil
}

func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrUnavailable):
		return "UNAVAILABLE"
	case errors.Is(err, ErrRejected):
		return "REJECTED"
	case errors.Is(err, ErrInvalidResponse):
		return "INVALID_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

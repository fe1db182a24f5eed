package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/gridrank/internal/adapters/repository"
	service "github.com/okian/gridrank/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrLimitExceeded = errors.New("limit exceeded")

	errNoRatings = fmt.Errorf("no ratings recorded: %w", repository.ErrNotFound)
)

// opError tags an error with the handler operation that produced it.
type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return e.op + ": " + e.err.Error() }

func (e *opError) Unwrap() error { return e.err }

// Wrap attributes err to op.
func Wrap(op string, err error) error {
	return &opError{op: op, err: err}
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrLimitExceeded):
		return http.StatusBadRequest, "limit_exceeded"
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrSeasonNotFound),
		errors.Is(err, repository.ErrWeekNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict, "run_in_progress"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, repository.ErrMissingAnchor), errors.Is(err, repository.ErrBrokenChain):
		return http.StatusUnprocessableEntity, "inconsistent_timeline"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

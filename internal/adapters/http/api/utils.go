package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// pathInt reads a positive integer path parameter.
func pathInt(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s %q must be a positive integer", ErrBadRequest, name, raw)
	}
	return n, nil
}

// optionalPathInt is pathInt for a parameter that may be absent.
func optionalPathInt(r *http.Request, name string) (*int, error) {
	if chi.URLParam(r, name) == "" {
		return nil, nil
	}
	n, err := pathInt(r, name)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// formatFloat renders a rating without trailing zeros.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

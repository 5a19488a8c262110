package backend

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTicker   = errors.New("empty ticker")
	ErrMalformedBody = errors.New("malformed response body")
)

// APIError is a failure reported by the backend, either through a non-2xx
// status or through an "error" field in a 200 body.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend %s: status %d: %s", e.Path, e.Status, e.Body)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}

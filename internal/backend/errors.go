package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the backend rejected the forwarded credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoContent is returned for a 204. Callers treat it as a warning.
	ErrNoContent = errors.New("no content")

	errNoCount = errors.New("response has no count")
)

// HTTPError is any other 4xx/5xx from the backend.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP_ERROR_%d", e.Status)
}

// TransportError wraps a failure to reach the backend or decode its reply.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusOf returns the HTTP status a facade should answer with for err.
func StatusOf(err error) int {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return 200
	case errors.Is(err, ErrUnauthorized):
		return 401
	case errors.Is(err, ErrNoContent):
		return 204
	case errors.As(err, &httpErr):
		return httpErr.Status
	default:
		return 500
	}
}

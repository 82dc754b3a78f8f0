package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork is returned when the request could not be completed.
	ErrNetwork = errors.New("network error")

	// ErrTimeout is returned when the request did not finish within the timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrHTTPStatus matches any StatusError via errors.Is.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrInvalidProxy is returned when the proxy URL cannot be used.
	ErrInvalidProxy = errors.New("invalid proxy url")
)

// StatusError reports a response with a 4xx or 5xx status code.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets errors.Is(err, ErrHTTPStatus) match.
func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}

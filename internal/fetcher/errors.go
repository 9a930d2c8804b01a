package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrNotHTML is returned when a response is not an HTML document.
	ErrNotHTML = errors.New("response is not an HTML document")

	// ErrPoolClosed is returned by Acquire after the pool was closed.
	ErrPoolClosed = errors.New("fetcher pool is closed")
)

// StatusError reports an HTTP response outside the 2xx/3xx range.
type StatusError struct {
	// URL is the requested URL.
	URL string
	// Code is the HTTP status code.
	Code int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
}

// StatusCode extracts the HTTP status code from err, or 0 when err does not
// carry one.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

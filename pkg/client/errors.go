package client

import (
	"errors"
	"fmt"
)

// ErrInvalidResponse is returned when a 2xx response body does not have the
// expected shape.
var ErrInvalidResponse = errors.New("invalid response")

// ErrRejected is returned when the API answers {"ok": false}.
var ErrRejected = errors.New("request rejected")

// HTTPError represents a non-2xx HTTP response from the API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsStatus returns true if err (or any wrapped error) is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidResponse}, args...)...)
}

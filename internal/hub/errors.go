package hub

import (
	"errors"
	"fmt"
)

// Domain errors for the hub package.
var (
	// ErrRequestFailed is returned when the hub answers with a non-2xx status.
	ErrRequestFailed = errors.New("hub: request failed")

	// ErrInvalidResponse is returned when a hub response cannot be decoded.
	ErrInvalidResponse = errors.New("hub: invalid response")

	// ErrInvalidConfig is returned when the client configuration is unusable.
	ErrInvalidConfig = errors.New("hub: invalid config")
)

// StatusError carries the HTTP status of a failed hub request.
// It unwraps to ErrRequestFailed.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hub: %s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// Unwrap allows errors.Is(err, ErrRequestFailed).
func (e *StatusError) Unwrap() error {
	return ErrRequestFailed
}

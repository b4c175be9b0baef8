package fibaro

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceNotFound is returned when the controller does not know a device id.
	ErrDeviceNotFound = errors.New("fibaro: device not found")

	// ErrUnauthorized is returned when the controller rejects the credentials.
	ErrUnauthorized = errors.New("fibaro: unauthorized")
)

// APIError is a non-2xx response from the controller.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fibaro: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 401, 403:
		return ErrUnauthorized
	case 404:
		return ErrDeviceNotFound
	}
	return nil
}

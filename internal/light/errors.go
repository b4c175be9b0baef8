package light

import (
	"errors"
	"fmt"
)

var (
	errShortColor   = errors.New("expected at least R,G,B components")
	errMissingWhite = errors.New("missing W component")
)

// ParseError is returned by Update when a device property cannot be
// converted.
type ParseError struct {
	Property string
	Value    string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s property %q: %v", e.Property, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is wrapped by every precondition failure (empty or
	// mismatched series, non-positive counts, zero-variance denominators).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNumericDomain is returned when a malformed covariance matrix yields a
	// negative quadratic form. The engine does not clamp it.
	ErrNumericDomain = errors.New("numeric domain error")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

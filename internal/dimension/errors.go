package dimension

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid dimension configuration. Configuration
// errors are detected once, when the dimension source is built.
type ConfigError struct {
	Dimension string
	Message   string
}

func (e *ConfigError) Error() string {
	if e.Dimension != "" {
		return fmt.Sprintf("dimension %q: %s", e.Dimension, e.Message)
	}
	return e.Message
}

// PointNotFoundError reports a point outside the allowed subspace.
type PointNotFoundError struct {
	Point  DimensionSpacePoint
	Reason string
}

func (e *PointNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("dimension space point %s not found: %s", e.Point, e.Reason)
	}
	return fmt.Sprintf("dimension space point %s is not within the allowed dimension subspace", e.Point)
}

// IsPointNotFound reports whether err is (or wraps) a PointNotFoundError.
func IsPointNotFound(err error) bool {
	var pe *PointNotFoundError
	return errors.As(err, &pe)
}

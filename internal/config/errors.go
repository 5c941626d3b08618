package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig matches every ConfigurationError via errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigurationError reports an invalid threshold, weight or duration.
// It is the only error class allowed to escape a constructor.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Invalid builds a ConfigurationError with a formatted reason.
func Invalid(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

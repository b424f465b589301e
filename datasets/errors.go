package datasets

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched (via errors.Is) by every *ConfigurationError.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an invalid or inconsistent static parameter:
// non-positive sizes, mismatched label/chunk/sample lengths, or a searchlight
// center whose neighborhood is empty after masking.
type ConfigurationError struct {
	// Field names the offending parameter (e.g. "block_size", "center").
	Field string
	// Value is the value that triggered the failure.
	Value any
	// Reason is a short human readable explanation.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match any ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// configErr is a small constructor used throughout the package.
func configErr(field string, value any, format string, args ...any) error {
	return &ConfigurationError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// NewConfigurationError builds a ConfigurationError for callers outside this
// package.
func NewConfigurationError(field string, value any, format string, args ...any) error {
	return configErr(field, value, format, args...)
}

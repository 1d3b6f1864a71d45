package manifest

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed or inconsistent manifest. It is always
// fatal for the operation that produced it.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Reason, e.Err)
	}
	return "invalid configuration: " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Errorf creates a ConfigError with a formatted reason.
func Errorf(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigError checks if err, or anything it wraps, is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var cerr *ConfigError
	return errors.As(err, &cerr)
}

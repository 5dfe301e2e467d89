package schema

import (
	"errors"
	"fmt"
)

// ErrConfig is wrapped by every schema declaration error
var ErrConfig = errors.New("invalid schema declaration")

// ConfigError reports a mistake in a class's field declarations. It is
// raised once, when the class's schema is compiled, and never on a per
// document basis.
type ConfigError struct {
	Class  string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema %s: %s", e.Class, e.Reason)
	}
	return fmt.Sprintf("schema %s: field %q: %s", e.Class, e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfig)
func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

func configErrorf(class, field, format string, args ...any) *ConfigError {
	return &ConfigError{Class: class, Field: field, Reason: fmt.Sprintf(format, args...)}
}

package nanodm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by every persistence operation issued
	// before DB.Connect
	ErrNotConnected = errors.New("nanodm: no storage adapter connected")

	// ErrAlreadyConnected is returned by a second DB.Connect
	ErrAlreadyConnected = errors.New("nanodm: storage adapter already connected")

	// ErrEmbeddedPersistence is returned when a persistence operation is
	// attempted on an embedded class or document
	ErrEmbeddedPersistence = errors.New("nanodm: embedded documents cannot be persisted on their own")

	// ErrValidation is wrapped by every *ValidationError
	ErrValidation = errors.New("nanodm: validation failed")

	// ErrUnknownKey is wrapped by every *UnknownKeyError
	ErrUnknownKey = errors.New("nanodm: unknown key")

	// ErrReferenceCycle is returned when unsaved documents reference each
	// other and none of them can be saved first
	ErrReferenceCycle = errors.New("nanodm: reference cycle between unsaved documents")
)

// ValidationError reports the first check a document failed
type ValidationError struct {
	Class  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("nanodm: validation failed for %s.%s: %s", e.Class, e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrValidation)
func (e *ValidationError) Unwrap() error { return ErrValidation }

// UnknownKeyError reports raw data for a key the class does not declare
type UnknownKeyError struct {
	Class string
	Key   string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("nanodm: %s has no field %q", e.Class, e.Key)
}

// Unwrap allows errors.Is(err, ErrUnknownKey)
func (e *UnknownKeyError) Unwrap() error { return ErrUnknownKey }

// HookError wraps the error returned by a lifecycle hook
type HookError struct {
	Phase Phase
	Class string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("nanodm: %s hook of %s failed: %v", e.Phase, e.Class, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigPath is returned when the application-data root cannot be
	// determined from the environment.
	ErrConfigPath = errors.New("settings path unavailable")

	// ErrNotFound is returned when the settings file does not exist.
	ErrNotFound = errors.New("settings file not found")

	// ErrFieldMissing is returned when the offset field is absent or is not
	// a JSON number.
	ErrFieldMissing = errors.New("offset field missing")
)

// NotFoundError reports the path that could not be found. It matches
// ErrNotFound via errors.Is.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find settings file at %s", e.Path)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IOError wraps a failure to read the settings file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to read settings file: %v", e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ParseError wraps a failure to decode the settings file as JSON.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse settings file: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FieldError reports a missing or mistyped offset field. It matches
// ErrFieldMissing via errors.Is.
type FieldError struct {
	Field string
	// Found is the JSON type that was present instead of a number, or empty
	// when the field was absent.
	Found string
}

func (e *FieldError) Error() string {
	if e.Found != "" {
		return fmt.Sprintf("failed to get offset from settings file: %s is %s, not a number", e.Field, e.Found)
	}

	return fmt.Sprintf("failed to get offset from settings file: %s is missing", e.Field)
}

func (e *FieldError) Is(target error) bool { return target == ErrFieldMissing }

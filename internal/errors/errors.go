package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session lifecycle
var (
	// Authentication errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrValidationFailed = errors.New("session failed validation")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

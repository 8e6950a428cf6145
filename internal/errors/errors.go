package errors

import (
	"errors"
	"fmt"
)

// Common error types for the OIDC facade
var (
	// Configuration errors (fatal at startup)
	ErrConfiguration = errors.New("invalid configuration")

	// Key errors
	ErrKeyUnavailable = errors.New("signing key unavailable")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")

	// Flow errors
	ErrMismatchingState = errors.New("mismatching state")
	ErrInvalidGrant     = errors.New("invalid grant")

	// Upstream errors
	ErrUpstream = errors.New("upstream request failed")
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

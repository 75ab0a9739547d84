package errors

import (
	"errors"
	"fmt"
)

// Common error types for the ConnectIn session client
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrUserExists         = errors.New("user already exists")

	// Token errors
	ErrMalformedToken      = errors.New("malformed token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrNoRefreshToken      = errors.New("no refresh token")
	ErrRefreshFailed       = errors.New("refresh failed")

	// Session errors
	ErrSessionExpired = errors.New("session expired")

	// Transport errors
	ErrNetwork          = errors.New("network error")
	ErrUnexpectedStatus = errors.New("unexpected status")

	// General errors
	ErrNotFound = errors.New("not found")
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

// Join joins two errors so both match with Is
func Join(errs ...error) error {
	return errors.Join(errs...)
}

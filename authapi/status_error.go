package authapi

import (
	"fmt"

	"github.com/jrsteele09/connectin-session/internal/errors"
)

// StatusError is returned for API responses with an unexpected status code
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return errors.ErrUnexpectedStatus
}

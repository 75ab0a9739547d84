package session

import (
	"context"

	apperrors "github.com/jrsteele09/connectin-session/internal/errors"
	"github.com/pkg/errors"
)

var ErrOAuthNotConfigured = errors.New("oauth provider not configured")

// DisplayMessage maps session errors to text suitable for showing inline
func DisplayMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		return "Invalid username or password."
	case apperrors.Is(err, apperrors.ErrUserExists):
		return "That username is already taken."
	case apperrors.Is(err, apperrors.ErrRefreshFailed), apperrors.Is(err, apperrors.ErrSessionExpired):
		return SessionExpiredNotice
	case apperrors.Is(err, context.DeadlineExceeded), apperrors.Is(err, apperrors.ErrNetwork):
		return "Could not reach ConnectIn. Check your connection."
	case apperrors.Is(err, apperrors.ErrMalformedToken):
		return "ConnectIn returned an unusable session. Please try again."
	case apperrors.Is(err, ErrOAuthNotConfigured):
		return "Social login is not available."
	}
	return "Something went wrong. Please try again."
}

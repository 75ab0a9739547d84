package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/connectin-session/internal/errors"
	"github.com/pkg/errors"
)

// Claims is the subset of access token claims the client needs. The token is
// decoded without signature verification; the API remains the authority.
type Claims struct {
	Subject   string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Decode reads the claims of a compact JWT without verifying it. A token that
// cannot be parsed, or has no exp claim, is malformed.
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrMalformedToken
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(apperrors.Join(apperrors.ErrMalformedToken, err), "token.Decode ParseUnverified")
	}

	claims, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(apperrors.ErrMalformedToken, "token.Decode claims")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.Wrap(apperrors.ErrMalformedToken, "token.Decode missing exp")
	}

	c := &Claims{ExpiresAt: exp.Time}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	c.Subject, _ = claims.GetSubject()
	c.ID, _ = claims["jti"].(string)
	return c, nil
}

// ExpiresAt is shorthand for Decode(rawToken).ExpiresAt
func ExpiresAt(rawToken string) (time.Time, error) {
	c, err := Decode(rawToken)
	if err != nil {
		return time.Time{}, err
	}
	return c.ExpiresAt, nil
}

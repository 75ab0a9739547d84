package authapi

import (
	"context"

	"github.com/jrsteele09/connectin-session/users"
)

// Tokens is an access/refresh pair issued by the API
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is the outcome of a successful credential or code exchange.
// User is nil when the API did not include a profile.
type LoginResult struct {
	Tokens Tokens
	User   *users.Summary
}

// API is the remote ConnectIn authentication surface the session manager consumes.
type API interface {
	// Login exchanges credentials for tokens. Rejected credentials return ErrInvalidCredentials.
	Login(ctx context.Context, identifier, secret string) (*LoginResult, error)

	// Register creates an account. It does not log in.
	Register(ctx context.Context, registration Registration) error

	// Refresh exchanges a refresh token for a new pair. A rejected token returns ErrInvalidRefreshToken.
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)

	// CurrentUser fetches the profile for accessToken
	CurrentUser(ctx context.Context, accessToken string) (*users.Summary, error)

	// Logout invalidates the session server side
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

package tokenstore

import "context"

// Fixed key names the token pair is persisted under
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// Pair is the persisted access/refresh token pair. Empty strings mean absent.
type Pair struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Empty reports whether neither token is present
func (p Pair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Store persists the token pair between process runs. Writes are
// last-writer-wins; no cross-process coordination is attempted.
type Store interface {
	// Load returns the persisted pair, or an empty Pair if nothing is stored
	Load(ctx context.Context) (Pair, error)

	// Save replaces both persisted tokens
	Save(ctx context.Context, pair Pair) error

	// Clear removes both persisted tokens
	Clear(ctx context.Context) error
}

package authapi

import "github.com/jrsteele09/connectin-session/users"

// TokenResponse is the body returned by the login and refresh endpoints.
type TokenResponse struct {
	// Access is the JWT used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access>"
	// Lifespan: Short-lived, the exp claim is authoritative
	Access string `json:"access"`

	// Refresh is the opaque token traded for a new pair at the refresh endpoint.
	// Rotation: The API may return a new refresh token on every refresh; when it
	// omits one the previous refresh token stays valid
	Refresh string `json:"refresh,omitempty"`

	// User is the profile snapshot. Only present on login responses, and not on all of them
	User *users.Summary `json:"user,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Registration is the body sent to the register endpoint
type Registration struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// errorResponse is the shape the API uses for failures
type errorResponse struct {
	Detail string `json:"detail"`
}

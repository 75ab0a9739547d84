package config

import "strings"

type OAuthConfig interface {
	GetOAuthIssuer() string
	GetOAuthClientID() string
	GetOAuthClientSecret() string
	GetOAuthRedirectURL() string
	GetOAuthScopes() []string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetOAuthIssuer returns the OIDC issuer used for social login. Empty disables OAuth.
func (OAuth) GetOAuthIssuer() string {
	return GetEnv("OAUTH_ISSUER", "")
}

func (OAuth) GetOAuthClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

func (OAuth) GetOAuthClientSecret() string {
	return GetEnv("OAUTH_CLIENT_SECRET", "")
}

func (OAuth) GetOAuthRedirectURL() string {
	return GetEnv("OAUTH_REDIRECT_URL", "http://localhost:5173/oauth/callback")
}

func (OAuth) GetOAuthScopes() []string {
	return strings.Fields(GetEnv("OAUTH_SCOPES", "openid profile email offline_access"))
}

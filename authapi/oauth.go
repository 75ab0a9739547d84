package authapi

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/connectin-session/internal/errors"
	"github.com/jrsteele09/connectin-session/users"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// OAuthExchanger completes a social login: it builds the authorization URL and
// trades the callback code for a ConnectIn token pair.
type OAuthExchanger interface {
	AuthCodeURL(state string) (authURL, verifier string)
	Exchange(ctx context.Context, code, verifier string) (*LoginResult, error)
}

// OAuthProvider implements OAuthExchanger with golang.org/x/oauth2 and, when a
// verifier is configured, go-oidc ID token verification for the user profile.
type OAuthProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

var _ OAuthExchanger = (*OAuthProvider)(nil)

func NewOAuthProvider(config *oauth2.Config, verifier *oidc.IDTokenVerifier) *OAuthProvider {
	return &OAuthProvider{config: config, verifier: verifier}
}

// DiscoverOAuthProvider resolves the issuer's endpoints via OIDC discovery
func DiscoverOAuthProvider(ctx context.Context, issuer, clientID, clientSecret, redirectURL string, scopes []string) (*OAuthProvider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "DiscoverOAuthProvider oidc.NewProvider")
	}
	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
	return NewOAuthProvider(config, provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

// AuthCodeURL returns the URL to send the user to and the PKCE verifier to
// keep for the callback
func (p *OAuthProvider) AuthCodeURL(state string) (string, string) {
	verifier := oauth2.GenerateVerifier()
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier)), verifier
}

func (p *OAuthProvider) Exchange(ctx context.Context, code, verifier string) (*LoginResult, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	oauth2Token, err := p.config.Exchange(ctx, code, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, errors.Wrap(apperrors.Join(apperrors.ErrInvalidCredentials, err), "OAuthProvider.Exchange")
		}
		return nil, errors.Wrap(apperrors.Join(apperrors.ErrNetwork, err), "OAuthProvider.Exchange")
	}

	result := &LoginResult{
		Tokens: Tokens{
			AccessToken:  oauth2Token.AccessToken,
			RefreshToken: oauth2Token.RefreshToken,
		},
	}

	if p.verifier == nil {
		return result, nil
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return result, nil
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(apperrors.Join(apperrors.ErrInvalidCredentials, err), "OAuthProvider.Exchange Verify")
	}

	var claims struct {
		Sub      string `json:"sub"`
		Username string `json:"preferred_username"`
		Name     string `json:"name"`
		Picture  string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "OAuthProvider.Exchange Claims")
	}

	result.User = &users.Summary{
		ID:          claims.Sub,
		Username:    claims.Username,
		DisplayName: claims.Name,
		Avatar:      claims.Picture,
	}
	return result, nil
}

package authapi_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/connectin-session/authapi"
	apperrors "github.com/jrsteele09/connectin-session/internal/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testIssuer   = "https://id.connectin.test"
	testClientID = "connectin-cli"
)

type fakeIdentityProvider struct {
	key      *rsa.PrivateKey
	srv      *httptest.Server
	lock     sync.Mutex
	form     url.Values
	idClaims jwt.MapClaims
	fail     bool
}

func newFakeIdentityProvider(t *testing.T) *fakeIdentityProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &fakeIdentityProvider{key: key}
	p.srv = httptest.NewServer(http.HandlerFunc(p.handleToken))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeIdentityProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	p.lock.Lock()
	p.form = r.PostForm
	p.lock.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if p.fail {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		return
	}

	body := map[string]any{
		"access_token":  "A1",
		"refresh_token": "R1",
		"token_type":    "Bearer",
		"expires_in":    300,
	}
	if p.idClaims != nil {
		idToken := jwt.NewWithClaims(jwt.SigningMethodRS256, p.idClaims)
		signed, err := idToken.SignedString(p.key)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body["id_token"] = signed
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (p *fakeIdentityProvider) posted(key string) string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.form.Get(key)
}

func (p *fakeIdentityProvider) exchanger(withVerifier bool) *authapi.OAuthProvider {
	config := &oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8085/callback",
		Scopes:       []string{oidc.ScopeOpenID, "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   testIssuer + "/authorize",
			TokenURL:  p.srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if !withVerifier {
		return authapi.NewOAuthProvider(config, nil)
	}
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&p.key.PublicKey}}
	return authapi.NewOAuthProvider(config, oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: testClientID}))
}

func TestOAuthAuthCodeURL(t *testing.T) {
	p := newFakeIdentityProvider(t)

	authURL, verifier := p.exchanger(false).AuthCodeURL("state-1")
	require.NotEmpty(t, verifier)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	query := parsed.Query()
	require.Equal(t, "state-1", query.Get("state"))
	require.Equal(t, testClientID, query.Get("client_id"))
	require.Equal(t, "S256", query.Get("code_challenge_method"))
	require.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), query.Get("code_challenge"))
	require.Equal(t, "offline", query.Get("access_type"))

	_, second := p.exchanger(false).AuthCodeURL("state-1")
	require.NotEqual(t, verifier, second, "every flow gets its own verifier")
}

func TestOAuthExchange(t *testing.T) {
	ctx := context.Background()

	t.Run("tokens without id token", func(t *testing.T) {
		p := newFakeIdentityProvider(t)

		result, err := p.exchanger(true).Exchange(ctx, "code-1", "verifier-1")
		require.NoError(t, err)
		require.Equal(t, authapi.Tokens{AccessToken: "A1", RefreshToken: "R1"}, result.Tokens)
		require.Nil(t, result.User)
		require.Equal(t, "code-1", p.posted("code"))
		require.Equal(t, "verifier-1", p.posted("code_verifier"))
	})

	t.Run("verified id token supplies the user", func(t *testing.T) {
		p := newFakeIdentityProvider(t)
		p.idClaims = jwt.MapClaims{
			"iss":                testIssuer,
			"aud":                testClientID,
			"sub":                "google-42",
			"preferred_username": "ada",
			"name":               "Ada Lovelace",
			"picture":            "https://img.connectin.test/ada.png",
			"iat":                time.Now().Unix(),
			"exp":                time.Now().Add(time.Hour).Unix(),
		}

		result, err := p.exchanger(true).Exchange(ctx, "code-1", "")
		require.NoError(t, err)
		require.NotNil(t, result.User)
		require.Equal(t, "google-42", result.User.ID)
		require.Equal(t, "ada", result.User.Username)
		require.Equal(t, "Ada Lovelace", result.User.DisplayName)
		require.Equal(t, "https://img.connectin.test/ada.png", result.User.Avatar)
		require.Empty(t, p.posted("code_verifier"))
	})

	t.Run("id token for another client is rejected", func(t *testing.T) {
		p := newFakeIdentityProvider(t)
		p.idClaims = jwt.MapClaims{
			"iss": testIssuer,
			"aud": "someone-else",
			"sub": "google-42",
			"exp": time.Now().Add(time.Hour).Unix(),
		}

		_, err := p.exchanger(true).Exchange(ctx, "code-1", "")
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
	})

	t.Run("id token ignored without a verifier", func(t *testing.T) {
		p := newFakeIdentityProvider(t)
		p.idClaims = jwt.MapClaims{"iss": testIssuer, "sub": "google-42"}

		result, err := p.exchanger(false).Exchange(ctx, "code-1", "")
		require.NoError(t, err)
		require.Nil(t, result.User)
	})

	t.Run("rejected code", func(t *testing.T) {
		p := newFakeIdentityProvider(t)
		p.fail = true

		_, err := p.exchanger(true).Exchange(ctx, "bad", "")
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
	})

	t.Run("unreachable provider", func(t *testing.T) {
		p := newFakeIdentityProvider(t)
		p.srv.Close()

		_, err := p.exchanger(true).Exchange(ctx, "code-1", "")
		require.True(t, apperrors.Is(err, apperrors.ErrNetwork))
	})
}

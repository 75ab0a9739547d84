package authapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/connectin-session/authapi"
	"github.com/jrsteele09/connectin-session/authapi/apifake"
	apperrors "github.com/jrsteele09/connectin-session/internal/errors"
	"github.com/jrsteele09/connectin-session/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testUsername     = "ada"
	testUserPassword = "Analytical1"
)

func newClient(t *testing.T, options ...apifake.Option) (*apifake.Server, *authapi.Client) {
	t.Helper()
	api := apifake.New("1234", options...)
	_, err := api.AddUser(testUsername, testUserPassword, "Ada Lovelace")
	require.NoError(t, err)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, authapi.NewClient(srv.URL+"/", authapi.WithLogger(zerolog.Nop()))
}

func TestClientLogin(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t, apifake.WithAccessTTL(2*time.Minute))

	t.Run("valid credentials", func(t *testing.T) {
		result, err := client.Login(ctx, testUsername, testUserPassword)
		require.NoError(t, err)
		require.NotEmpty(t, result.Tokens.RefreshToken)
		require.Equal(t, testUsername, result.User.Username)

		claims, err := token.Decode(result.Tokens.AccessToken)
		require.NoError(t, err)
		require.Equal(t, result.User.ID, claims.Subject)
		require.WithinDuration(t, time.Now().Add(2*time.Minute), claims.ExpiresAt, 5*time.Second)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		_, err := client.Login(ctx, testUsername, "nope")
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidCredentials))
	})
}

func TestClientRegister(t *testing.T) {
	ctx := context.Background()
	_, client := newClient(t)

	registration := authapi.Registration{Username: "grace", Email: "grace@connectin.test", Password: "Compiler1952"}
	require.NoError(t, client.Register(ctx, registration))

	err := client.Register(ctx, registration)
	require.True(t, apperrors.Is(err, apperrors.ErrUserExists))

	err = client.Register(ctx, authapi.Registration{Username: "weak", Password: "short"})
	var statusErr *authapi.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Contains(t, statusErr.Detail, "8 characters")
	require.True(t, apperrors.Is(err, apperrors.ErrUnexpectedStatus))
}

func TestClientRefresh(t *testing.T) {
	ctx := context.Background()
	api, client := newClient(t)
	result, err := client.Login(ctx, testUsername, testUserPassword)
	require.NoError(t, err)

	t.Run("rotates the pair", func(t *testing.T) {
		tokens, err := client.Refresh(ctx, result.Tokens.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, result.Tokens.AccessToken, tokens.AccessToken)
		require.NotEqual(t, result.Tokens.RefreshToken, tokens.RefreshToken)

		_, err = client.Refresh(ctx, result.Tokens.RefreshToken)
		require.True(t, apperrors.Is(err, apperrors.ErrInvalidRefreshToken), "a consumed refresh token is rejected")
	})

	t.Run("missing refresh token makes no call", func(t *testing.T) {
		calls := api.RefreshCalls()
		_, err := client.Refresh(ctx, "")
		require.True(t, apperrors.Is(err, apperrors.ErrNoRefreshToken))
		require.Equal(t, calls, api.RefreshCalls())
	})
}

func TestClientRefreshKeepsOmittedRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.False(t, authapi.IsRefreshRequest(r), "the marker never leaves the process")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(authapi.TokenResponse{Access: "A2"})
	}))
	defer srv.Close()

	tokens, err := authapi.NewClient(srv.URL).Refresh(context.Background(), "R1")
	require.NoError(t, err)
	require.Equal(t, authapi.Tokens{AccessToken: "A2", RefreshToken: "R1"}, *tokens)
}

func TestClientRefreshCarriesMarker(t *testing.T) {
	var marked bool
	httpClient := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		marked = authapi.IsRefreshRequest(req)
		return http.DefaultTransport.RoundTrip(req)
	})}

	_, srv := newServer(t)
	client := authapi.NewClient(srv.URL, authapi.WithHTTPClient(httpClient))
	_, _ = client.Refresh(context.Background(), "R1")
	require.True(t, marked)

	marked = false
	_, _ = client.Login(context.Background(), testUsername, testUserPassword)
	require.False(t, marked)
}

func TestClientCurrentUserAndLogout(t *testing.T) {
	ctx := context.Background()
	api, client := newClient(t)
	result, err := client.Login(ctx, testUsername, testUserPassword)
	require.NoError(t, err)

	user, err := client.CurrentUser(ctx, result.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", user.DisplayName)

	require.NoError(t, client.Logout(ctx, result.Tokens.AccessToken, result.Tokens.RefreshToken))
	require.Equal(t, 1, api.LogoutCalls())

	_, err = client.CurrentUser(ctx, result.Tokens.AccessToken)
	require.True(t, apperrors.Is(err, apperrors.ErrNotAuthenticated), "access token is revoked")
	_, err = client.Refresh(ctx, result.Tokens.RefreshToken)
	require.True(t, apperrors.Is(err, apperrors.ErrInvalidRefreshToken), "refresh token is revoked")

	api.FailLogout(true)
	fresh, err := client.Login(ctx, testUsername, testUserPassword)
	require.NoError(t, err)
	require.Error(t, client.Logout(ctx, fresh.Tokens.AccessToken, fresh.Tokens.RefreshToken))
}

func TestClientExpiredAccessToken(t *testing.T) {
	ctx := context.Background()
	api, client := newClient(t)
	result, err := client.Login(ctx, testUsername, testUserPassword)
	require.NoError(t, err)

	api.Advance(time.Hour)
	_, err = client.CurrentUser(ctx, result.Tokens.AccessToken)
	require.True(t, apperrors.Is(err, apperrors.ErrNotAuthenticated))
}

func TestClientNetworkError(t *testing.T) {
	client := authapi.NewClient("http://127.0.0.1:1", authapi.WithTimeout(time.Second))
	_, err := client.Login(context.Background(), testUsername, testUserPassword)
	require.True(t, apperrors.Is(err, apperrors.ErrNetwork))
}

func TestClientCustomEndpoints(t *testing.T) {
	endpoints := authapi.Endpoints{
		Login:       "/v2/login",
		Register:    "/v2/register",
		Refresh:     "/v2/refresh",
		CurrentUser: "/v2/me",
		Logout:      "/v2/logout",
	}
	api := apifake.New("1234", apifake.WithEndpoints(endpoints))
	_, err := api.AddUser(testUsername, testUserPassword, "")
	require.NoError(t, err)
	srv := httptest.NewServer(api)
	defer srv.Close()

	client := authapi.NewClient(srv.URL, authapi.WithEndpoints(endpoints))
	result, err := client.Login(context.Background(), testUsername, testUserPassword)
	require.NoError(t, err)
	user, err := client.CurrentUser(context.Background(), result.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUsername, user.Name())
}

func newServer(t *testing.T) (*apifake.Server, *httptest.Server) {
	t.Helper()
	api := apifake.New("1234")
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

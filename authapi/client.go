package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/connectin-session/internal/errors"
	"github.com/jrsteele09/connectin-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoints are the API paths relative to the base URL
type Endpoints struct {
	Login       string
	Register    string
	Refresh     string
	CurrentUser string
	Logout      string
}

// DefaultEndpoints are the ConnectIn API routes
var DefaultEndpoints = Endpoints{
	Login:       "/api/auth/login/",
	Register:    "/api/auth/register/",
	Refresh:     "/api/auth/token/refresh/",
	CurrentUser: "/api/users/me/",
	Logout:      "/api/auth/logout/",
}

// Client talks JSON to the ConnectIn authentication API. It uses its own
// http.Client so auth calls never pass back through the session transport.
type Client struct {
	baseURL    string
	endpoints  Endpoints
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ API = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithEndpoints(endpoints Endpoints) ClientOption {
	return func(c *Client) {
		c.endpoints = endpoints
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		endpoints:  DefaultEndpoints,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	resp, err := c.do(ctx, http.MethodPost, c.endpoints.Login, "", loginRequest{Username: identifier, Password: secret})
	if err != nil {
		return nil, errors.Wrap(err, "Client.Login")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return nil, errors.Wrap(apperrors.ErrInvalidCredentials, "Client.Login")
	default:
		return nil, statusError("Client.Login", resp)
	}

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, errors.Wrap(err, "Client.Login Decode")
	}
	return &LoginResult{
		Tokens: Tokens{AccessToken: tr.Access, RefreshToken: tr.Refresh},
		User:   tr.User,
	}, nil
}

func (c *Client) Register(ctx context.Context, registration Registration) error {
	resp, err := c.do(ctx, http.MethodPost, c.endpoints.Register, "", registration)
	if err != nil {
		return errors.Wrap(err, "Client.Register")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return errors.Wrap(apperrors.ErrUserExists, "Client.Register")
	default:
		return statusError("Client.Register", resp)
	}
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, apperrors.ErrNoRefreshToken
	}

	resp, err := c.do(WithRefreshMarker(ctx), http.MethodPost, c.endpoints.Refresh, "", refreshRequest{Refresh: refreshToken})
	if err != nil {
		return nil, errors.Wrap(err, "Client.Refresh")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, errors.Wrap(apperrors.ErrInvalidRefreshToken, "Client.Refresh")
	default:
		return nil, statusError("Client.Refresh", resp)
	}

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, errors.Wrap(err, "Client.Refresh Decode")
	}
	if tr.Refresh == "" {
		tr.Refresh = refreshToken
	}
	return &Tokens{AccessToken: tr.Access, RefreshToken: tr.Refresh}, nil
}

func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*users.Summary, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoints.CurrentUser, accessToken, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Client.CurrentUser")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, errors.Wrap(apperrors.ErrNotAuthenticated, "Client.CurrentUser")
	default:
		return nil, statusError("Client.CurrentUser", resp)
	}

	var summary users.Summary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, errors.Wrap(err, "Client.CurrentUser Decode")
	}
	return &summary, nil
}

func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	resp, err := c.do(ctx, http.MethodPost, c.endpoints.Logout, accessToken, refreshRequest{Refresh: refreshToken})
	if err != nil {
		return errors.Wrap(err, "Client.Logout")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("Client.Logout", resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "Marshal")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "NewRequest")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Join(apperrors.ErrNetwork, err)
	}
	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("auth api call")
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	var er errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&er)
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Detail: er.Detail}
}

// Package transport carries a session's credential on outgoing ConnectIn API
// requests and lets the session recover from 401 responses.
package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/connectin-session/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Request-ID"

// Authenticator is the part of session.Manager the transport relies on
type Authenticator interface {
	AttachCredential(req *http.Request) *http.Request
	HandleUnauthorized(ctx context.Context, failed *http.Request, resp *http.Response, do session.Doer) (*http.Response, error)
}

var _ Authenticator = (*session.Manager)(nil)

type Transport struct {
	auth   Authenticator
	base   http.RoundTripper
	logger zerolog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

type Option func(*Transport)

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// New wraps base, or http.DefaultTransport when base is nil
func New(auth Authenticator, base http.RoundTripper, options ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{
		auth:   auth,
		base:   base,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// NewClient returns an http.Client that sends every request through a Transport
func NewClient(auth Authenticator, timeout time.Duration, options ...Option) *http.Client {
	return &http.Client{
		Transport: New(auth, nil, options...),
		Timeout:   timeout,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	sent := t.auth.AttachCredential(req)
	if sent == req {
		sent = req.Clone(req.Context())
	}
	if sent.Header.Get(RequestIDHeader) == "" {
		sent.Header.Set(RequestIDHeader, uuid.NewString())
	}

	resp, err := t.base.RoundTrip(sent)
	if err != nil {
		return nil, err
	}
	t.logger.Debug().
		Str("method", sent.Method).
		Str("path", sent.URL.Path).
		Str("request_id", sent.Header.Get(RequestIDHeader)).
		Int("status", resp.StatusCode).
		Msg("api request")

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	return t.auth.HandleUnauthorized(req.Context(), sent, resp, t.base.RoundTrip)
}

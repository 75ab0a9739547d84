package session

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/jrsteele09/connectin-session/authapi"
	"github.com/pkg/errors"
)

// Doer sends a request, typically the base RoundTripper of the transport
type Doer func(*http.Request) (*http.Response, error)

type retriedKey struct{}

func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func isRetried(req *http.Request) bool {
	retried, _ := req.Context().Value(retriedKey{}).(bool)
	return retried
}

// AttachCredential returns a copy of req carrying the installed access token,
// or req itself when there is no session. It never blocks.
func (m *Manager) AttachCredential(req *http.Request) *http.Request {
	accessToken := m.currentCredential()
	if accessToken == "" {
		return req
	}
	attached := req.Clone(req.Context())
	attached.Header.Set("Authorization", "Bearer "+accessToken)
	return attached
}

// HandleUnauthorized decides what to do about a 401 for failed. It returns the
// response of a single retry when the credential could be renewed, and the
// original resp otherwise. A 401 on a refresh call or on a retry ends the session.
// If the credential failed was sent with has already been replaced, the retry
// uses the replacement without another refresh.
func (m *Manager) HandleUnauthorized(ctx context.Context, failed *http.Request, resp *http.Response, do Doer) (*http.Response, error) {
	if authapi.IsRefreshRequest(failed) || isRetried(failed) {
		m.logger.Info().Str("path", failed.URL.Path).Msg("credential rejected after refresh")
		m.end(ctx, EventSessionExpired, true)
		return resp, nil
	}

	sent := bearerFrom(failed)
	accessToken := m.currentCredential()
	if sent == "" && accessToken == "" {
		return resp, nil
	}

	if sent != "" {
		var err error
		accessToken, err = m.refreshReplacing(ctx, sent)
		if err != nil {
			m.logger.Debug().Err(err).Str("path", failed.URL.Path).Msg("refresh did not recover request")
			return resp, nil
		}
	}

	retry, err := retryRequest(ctx, failed, accessToken)
	if err != nil {
		m.logger.Warn().Err(err).Str("path", failed.URL.Path).Msg("request cannot be replayed")
		return resp, nil
	}
	drain(resp)

	retried, err := do(retry)
	if err != nil || retried.StatusCode != http.StatusUnauthorized {
		return retried, err
	}
	return m.HandleUnauthorized(ctx, retry, retried, do)
}

func retryRequest(ctx context.Context, failed *http.Request, accessToken string) (*http.Request, error) {
	retry := failed.Clone(withRetried(ctx))
	if failed.Body != nil && failed.Body != http.NoBody {
		if failed.GetBody == nil {
			return nil, errors.New("[retryRequest] body is not rewindable")
		}
		body, err := failed.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, "[retryRequest] GetBody")
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+accessToken)
	return retry, nil
}

func bearerFrom(req *http.Request) string {
	raw := req.Header.Get("Authorization")
	if !strings.HasPrefix(raw, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(raw, "Bearer ")
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}

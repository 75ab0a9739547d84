package authapi

import (
	"context"
	"net/http"
)

type refreshMarkerKey struct{}

// WithRefreshMarker tags ctx as belonging to a token refresh exchange
func WithRefreshMarker(ctx context.Context) context.Context {
	return context.WithValue(ctx, refreshMarkerKey{}, true)
}

// IsRefreshContext reports whether ctx was tagged by WithRefreshMarker
func IsRefreshContext(ctx context.Context) bool {
	marked, _ := ctx.Value(refreshMarkerKey{}).(bool)
	return marked
}

// IsRefreshRequest reports whether req is a token refresh call. An
// unauthorized response to such a request must never trigger another refresh.
func IsRefreshRequest(req *http.Request) bool {
	return req != nil && IsRefreshContext(req.Context())
}

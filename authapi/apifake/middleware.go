package apifake

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type claimsKey struct{}

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// RecordMiddleware remembers the bearer token each request arrived with
func (s *Server) RecordMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		next(w, r)
	}
}

// BearerMiddleware rejects requests without a valid, unrevoked, unexpired access token
func (s *Server) BearerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, detail := s.verifyBearer(r)
		if detail != "" {
			writeDetail(w, http.StatusUnauthorized, detail)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	}
}

// verifyBearer returns the access token claims, or the reason they were rejected
func (s *Server) verifyBearer(r *http.Request) (jwt.MapClaims, string) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, "Authentication credentials were not provided."
	}

	claims, err := s.signer.Verify(raw, jwt.WithTimeFunc(s.Now))
	if err != nil {
		return nil, "Given token not valid for any token type"
	}
	if jti, _ := claims["jti"].(string); jti != "" && s.revoked.IsRevoked(jti) {
		return nil, "Token is blacklisted"
	}
	return claims, ""
}

func claimsFrom(r *http.Request) jwt.MapClaims {
	claims, _ := r.Context().Value(claimsKey{}).(jwt.MapClaims)
	return claims
}

package apifake

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/connectin-session/internal/errors"
)

// storedRefreshToken is the server-side metadata for an opaque refresh token
type storedRefreshToken struct {
	Token  string
	UserID string
	Iat    time.Time
}

// refreshStore issues and rotates refresh tokens, one per user
type refreshStore struct {
	tokens  map[string]*storedRefreshToken
	userIDs map[string]string // user ID to token
	lock    sync.Mutex
}

func newRefreshStore() *refreshStore {
	return &refreshStore{
		tokens:  make(map[string]*storedRefreshToken),
		userIDs: make(map[string]string),
	}
}

// Create replaces any existing refresh token for userID with a new one
func (rs *refreshStore) Create(userID string, now time.Time) (string, error) {
	tokenBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	tokenStr := hex.EncodeToString(tokenBytes)

	rs.lock.Lock()
	defer rs.lock.Unlock()

	if existing, ok := rs.userIDs[userID]; ok {
		delete(rs.tokens, existing)
	}
	rs.tokens[tokenStr] = &storedRefreshToken{Token: tokenStr, UserID: userID, Iat: now}
	rs.userIDs[userID] = tokenStr
	return tokenStr, nil
}

// Consume returns and deletes the stored token if it exists and is younger than ttl
func (rs *refreshStore) Consume(token string, now time.Time, ttl time.Duration) (*storedRefreshToken, error) {
	rs.lock.Lock()
	defer rs.lock.Unlock()

	rt, ok := rs.tokens[token]
	if !ok {
		return nil, errors.ErrInvalidRefreshToken
	}
	delete(rs.tokens, token)
	delete(rs.userIDs, rt.UserID)

	if now.Sub(rt.Iat) > ttl {
		return nil, errors.ErrInvalidRefreshToken
	}
	return rt, nil
}

func (rs *refreshStore) Delete(token string) {
	rs.lock.Lock()
	defer rs.lock.Unlock()

	if rt, ok := rs.tokens[token]; ok {
		delete(rs.userIDs, rt.UserID)
		delete(rs.tokens, token)
	}
}

package apifake

import (
	"sync"
	"time"
)

// revokedTokens tracks access token IDs invalidated by logout until they expire
type revokedTokens struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

func newRevokedTokens() *revokedTokens {
	return &revokedTokens{
		revoked: make(map[string]time.Time),
	}
}

func (c *revokedTokens) Add(jti string, exp time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = exp
}

func (c *revokedTokens) IsRevoked(jti string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.revoked[jti]
	return exists
}

// Cleanup removes entries whose token has expired anyway
func (c *revokedTokens) Cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for jti, exp := range c.revoked {
		if now.After(exp) {
			delete(c.revoked, jti)
		}
	}
}

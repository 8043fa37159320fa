package feed

import (
	"context"
	"sync"
	"time"
)

// refreshSkew refreshes the token slightly before its stated expiry so
// an in-flight request never carries a token that lapses mid-call.
const refreshSkew = 30 * time.Second

// RefreshFunc obtains a fresh access token and its expiry from the
// aggregator's auth endpoint.
type RefreshFunc func(ctx context.Context) (token string, expiry time.Time, err error)

// TokenCache is a scoped credential cache owned by the aggregator
// collaborator. The pipeline core never sees or manages the token.
type TokenCache struct {
	mu      sync.Mutex
	token   string
	expiry  time.Time
	refresh RefreshFunc
	now     func() time.Time
}

// NewTokenCache creates a cache around the given refresh function.
func NewTokenCache(refresh RefreshFunc) *TokenCache {
	return &TokenCache{refresh: refresh, now: time.Now}
}

// Token returns the cached token, refreshing it first when absent or
// within the skew of expiry.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(refreshSkew).Before(c.expiry) {
		return c.token, nil
	}

	token, expiry, err := c.refresh(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiry = expiry
	return token, nil
}

// Invalidate discards the cached token, forcing a refresh on next use.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiry = time.Time{}
}

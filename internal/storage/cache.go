package storage

import (
	"sync"
	"time"
)

// KeyCache remembers verified API keys for a short time so a hot client does
// not pay a database round trip and a bcrypt comparison on every check.
// Entries are keyed by the full presented token.
type KeyCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]keyEntry
}

type keyEntry struct {
	appID   string
	expires time.Time
}

const maxCachedKeys = 10000

func NewKeyCache(ttl time.Duration) *KeyCache {
	return &KeyCache{ttl: ttl, now: time.Now, entries: make(map[string]keyEntry)}
}

// Get returns the app for a previously verified token.
func (c *KeyCache) Get(token string) (string, bool) {
	if c == nil || c.ttl <= 0 {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[token]
	if !ok || c.now().After(e.expires) {
		return "", false
	}
	return e.appID, true
}

func (c *KeyCache) Put(token, appID string) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if len(c.entries) >= maxCachedKeys {
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= maxCachedKeys {
			clear(c.entries)
		}
	}
	c.entries[token] = keyEntry{appID: appID, expires: now.Add(c.ttl)}
}

// Purge drops every entry, e.g. after key revocation is signalled.
func (c *KeyCache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyCache(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewKeyCache(time.Minute)
	c.now = func() time.Time { return now }

	_, ok := c.Get("tok")
	assert.False(t, ok)

	c.Put("tok", "app-1")
	app, ok := c.Get("tok")
	assert.True(t, ok)
	assert.Equal(t, "app-1", app)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("tok")
	assert.False(t, ok, "expired entries are ignored")

	c.Put("tok", "app-1")
	c.Purge()
	_, ok = c.Get("tok")
	assert.False(t, ok)
}

func TestKeyCache_Disabled(t *testing.T) {
	c := NewKeyCache(0)
	c.Put("tok", "app-1")
	_, ok := c.Get("tok")
	assert.False(t, ok)

	var nilCache *KeyCache
	nilCache.Put("tok", "app")
	_, ok = nilCache.Get("tok")
	assert.False(t, ok)
}

func TestListenStatement(t *testing.T) {
	assert.Equal(t, `LISTEN "version_rules_changed"`, ListenStatement(""))
	assert.Equal(t, `LISTEN "`+NotifyChannel+`"`, ListenStatement(NotifyChannel))
	assert.Equal(t, `LISTEN "custom"`, ListenStatement("custom"))
	assert.Equal(t, `LISTEN "a""b"`, ListenStatement(`a"b`))
}

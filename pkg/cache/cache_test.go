package cache

import (
	"context"
	"testing"
	"time"

	"github.com/mikeboe/osint-helper/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Hour)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "https://example.com", "<html>body</html>"))

	got, ok, err := m.Get(ctx, "https://example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html>body</html>", got)

	now = now.Add(time.Hour + time.Second)
	_, ok, err = m.Get(ctx, "https://example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	require.NoError(t, m.Set(ctx, "k", "v"))
	m.now = func() time.Time { return time.Now().Add(100 * 365 * 24 * time.Hour) }

	got, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestNewSelectsBackend(t *testing.T) {
	c, err := New(config.CacheConfig{Backend: "memory", TTL: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = New(config.CacheConfig{Backend: "redis", RedisURL: "redis://localhost:6379/2"})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, c)
	require.NoError(t, c.(*Redis).Close())

	c, err = New(config.CacheConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = New(config.CacheConfig{Backend: "memcached"})
	assert.Error(t, err)
}

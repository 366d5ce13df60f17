package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledCache(t *testing.T) {
	tests := []struct {
		name  string
		cache *Cache
	}{
		{"nil cache", nil},
		{"empty URL", New("", time.Minute, nil)},
		{"invalid URL", New("not-a-redis-url", time.Minute, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := tt.cache

			assert.False(t, c.Enabled())

			version, err := c.Version(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(0), version)

			var dest map[string]int
			hit, err := c.Get(ctx, version, "channels", &dest)
			require.NoError(t, err)
			assert.False(t, hit)
			assert.Nil(t, dest)

			assert.NoError(t, c.Set(ctx, version, "channels", map[string]int{"a": 1}))
			assert.NoError(t, c.Invalidate(ctx))
			assert.NoError(t, c.Ping(ctx))
			assert.NoError(t, c.Close())
		})
	}
}

func TestNewWithClient_DefaultTTL(t *testing.T) {
	c := NewWithClient(nil, 0, nil)
	assert.Equal(t, DefaultTTL, c.ttl)
	assert.False(t, c.Enabled())
}

func TestFormatKey(t *testing.T) {
	assert.Equal(t, "ytrank:ranking:v0:trends", formatKey(0, "trends"))
	assert.Equal(t, "ytrank:ranking:v12:list:abc", formatKey(12, "list:abc"))
}

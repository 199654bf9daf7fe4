package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "import:progress:1", []byte(`{"processed":25}`), time.Minute))

	v, ok, err := c.Get(ctx, "import:progress:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"processed":25}`, string(v))

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "import:progress:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoop()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

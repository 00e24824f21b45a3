package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("connects", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := NewClient(context.Background(), "redis://"+mr.Addr())
		require.NoError(t, err)
		defer client.Close()

		require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
		assert.Equal(t, "v", mr.MustGet("k"))
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := NewClient(context.Background(), "not-a-url")
		assert.ErrorContains(t, err, "parse redis url")
	})

	t.Run("unreachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := NewClient(context.Background(), "redis://"+addr)
		assert.ErrorContains(t, err, "ping redis")
	})
}

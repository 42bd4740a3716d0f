package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStoreFromClient(client),
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
			v, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "1", string(v))

			ok, err := s.SetNX(ctx, "a", []byte("2"), 0)
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = s.SetNX(ctx, "b", []byte("2"), 0)
			require.NoError(t, err)
			assert.True(t, ok)

			v, err = s.GetDel(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, "2", string(v))
			_, err = s.GetDel(ctx, "b")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Delete(ctx, "a"))
			require.NoError(t, s.Delete(ctx, "a"))
			_, err = s.Get(ctx, "a")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestPrefixedIsolatesKeys(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	left := WithPrefix(base, "left:")
	right := WithPrefix(base, "right:")

	require.NoError(t, left.Set(ctx, "k", []byte("L"), 0))
	require.NoError(t, right.Set(ctx, "k", []byte("R"), 0))

	v, err := base.Get(ctx, "left:k")
	require.NoError(t, err)
	assert.Equal(t, "L", string(v))

	v, err = right.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "R", string(v))
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "nonce", []byte("x"), time.Minute))
	_, err := s.Get(ctx, "nonce")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, "nonce")
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := s.SetNX(ctx, "nonce", []byte("y"), 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	err := s.Set(context.Background(), "a", nil, 0)
	require.ErrorIs(t, err, ErrClosed)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

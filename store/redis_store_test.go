package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	s, err := NewRedisStore(RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)

	return mr, s
}

func TestRedisStore(t *testing.T) {
	mr, s := setupTestRedis(t)
	defer mr.Close()
	defer s.Close()

	exerciseStore(t, s)
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	mr, s := setupTestRedis(t)
	defer mr.Close()
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "pendingAgentsToAdd", "{}"))

	// The raw redis key carries the canvasflow prefix so unrelated
	// applications sharing the instance never collide.
	got, err := mr.Get("canvasflow:kv:pendingAgentsToAdd")
	require.NoError(t, err)
	assert.Equal(t, "{}", got)
}

func TestRedisStore_ConnectFailure(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
}

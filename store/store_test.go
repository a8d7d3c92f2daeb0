package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// exerciseStore runs the shared KeyValueStore contract against any backend.
func exerciseStore(t *testing.T, s KeyValueStore) {
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k1", "v1"))
		val, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "v1", val)
	})

	t.Run("LastWriterWins", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k1", "first"))
		require.NoError(t, s.Set(ctx, "k1", "second"))
		val, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "second", val)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k2", "v2"))
		require.NoError(t, s.Remove(ctx, "k2"))
		_, err := s.Get(ctx, "k2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("RemoveMissingIsNoop", func(t *testing.T) {
		assert.NoError(t, s.Remove(ctx, "never-set"))
	})
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	ctx := context.Background()
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), ErrStoreClosed)
	assert.ErrorIs(t, s.Remove(ctx, "k"), ErrStoreClosed)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStore_UnsafeKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	key := "pendingAgentsToAdd/../weird key"
	require.NoError(t, s.Set(ctx, key, "safe"))
	val, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "safe", val)
}

func TestFileStore_RequiresBaseDir(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestNewKeyValueStore_Factory(t *testing.T) {
	logger := zap.NewNop()

	s, err := NewKeyValueStore(Config{Type: StoreTypeMemory}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = NewKeyValueStore(Config{Type: StoreTypeFile, BaseDir: t.TempDir()}, logger)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = NewKeyValueStore(Config{Type: StoreType("bogus")}, logger)
	assert.Error(t, err)
}

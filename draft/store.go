package draft

import (
	"context"
	"encoding/json"
	"sync"

	kvstore "github.com/BaSui01/canvasflow/store"
	"github.com/BaSui01/canvasflow/types"
)

// draftsKey is the durable store key holding the serialized draft map.
const draftsKey = "canvasflowDrafts"

// Store performs the durable write of the full draft map.
type Store interface {
	SaveDrafts(ctx context.Context, drafts map[string]types.TabDraft) error
	LoadDrafts(ctx context.Context) (map[string]types.TabDraft, error)
}

// MemoryStore keeps the persisted draft map in memory. For tests and
// ephemeral sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]types.TabDraft
}

// NewMemoryStore creates an in-memory draft store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: map[string]types.TabDraft{}}
}

// SaveDrafts replaces the persisted map.
func (s *MemoryStore) SaveDrafts(ctx context.Context, drafts map[string]types.TabDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]types.TabDraft, len(drafts))
	for id, d := range drafts {
		out[id] = d.Clone()
	}
	s.drafts = out
	return nil
}

// LoadDrafts returns the persisted map.
func (s *MemoryStore) LoadDrafts(ctx context.Context) (map[string]types.TabDraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.TabDraft, len(s.drafts))
	for id, d := range s.drafts {
		out[id] = d.Clone()
	}
	return out, nil
}

// KVStore persists the draft map as JSON under a well-known key in any
// KeyValueStore backend (memory, file, or redis).
type KVStore struct {
	kv kvstore.KeyValueStore
}

// NewKVStore creates a draft store backed by a key-value store.
func NewKVStore(kv kvstore.KeyValueStore) *KVStore {
	return &KVStore{kv: kv}
}

// SaveDrafts serializes and writes the full map (last write wins).
// Write failures carry the ErrPersistFailed code.
func (s *KVStore) SaveDrafts(ctx context.Context, drafts map[string]types.TabDraft) error {
	data, err := json.Marshal(drafts)
	if err != nil {
		return types.NewError(types.ErrPersistFailed, "failed to marshal drafts").WithCause(err)
	}
	if err := s.kv.Set(ctx, draftsKey, string(data)); err != nil {
		return types.NewError(types.ErrPersistFailed, "failed to persist drafts").WithCause(err)
	}
	return nil
}

// LoadDrafts reads and normalizes the persisted map. A missing key
// yields an empty map; read failures carry the ErrStoreUnavailable code.
func (s *KVStore) LoadDrafts(ctx context.Context) (map[string]types.TabDraft, error) {
	raw, err := s.kv.Get(ctx, draftsKey)
	if err != nil {
		if err == kvstore.ErrNotFound {
			return map[string]types.TabDraft{}, nil
		}
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to load drafts").WithCause(err)
	}

	var drafts map[string]types.TabDraft
	if err := json.Unmarshal([]byte(raw), &drafts); err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to unmarshal drafts").WithCause(err)
	}
	for id, d := range drafts {
		d.Normalize()
		drafts[id] = d
	}
	return drafts, nil
}

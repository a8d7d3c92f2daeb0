package draft

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kvstore "github.com/BaSui01/canvasflow/store"
	"github.com/BaSui01/canvasflow/types"
)

func newTestSynchronizer(t *testing.T) (*Synchronizer, *MemoryStore) {
	store := NewMemoryStore()
	s := NewSynchronizer(store, nil, nil)
	t.Cleanup(s.Stop)
	return s, store
}

func TestSynchronizer_ScheduleUpdate(t *testing.T) {
	s, store := newTestSynchronizer(t)

	nodes := []types.CanvasNode{{ID: "n1"}, {ID: "n2"}}
	identity := types.WorkflowIdentity{ID: "wf-1", Name: "My Flow", Description: "d"}
	s.ScheduleUpdate("tab-1", nodes, identity, true)

	assert.Eventually(t, func() bool {
		d, ok := s.Draft("tab-1")
		return ok && len(d.Nodes) == 2
	}, time.Second, 5*time.Millisecond)

	d, ok := s.Draft("tab-1")
	require.True(t, ok)
	assert.Equal(t, "wf-1", d.WorkflowID)
	assert.Equal(t, "My Flow", d.WorkflowName)
	assert.True(t, d.IsUnsaved)
	assert.NotNil(t, d.Edges, "edges must never be nil")

	// The full map reached the durable store as well.
	assert.Eventually(t, func() bool {
		persisted, err := store.LoadDrafts(context.Background())
		return err == nil && len(persisted) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSynchronizer_EdgesSurviveNodeUpdates(t *testing.T) {
	s, _ := newTestSynchronizer(t)

	s.CreateDraft("tab-1", types.TabDraft{
		Edges: []types.Edge{{ID: "e1", Source: "a", Target: "b"}},
	})

	s.ScheduleUpdate("tab-1", []types.CanvasNode{{ID: "n1"}}, types.WorkflowIdentity{}, true)

	assert.Eventually(t, func() bool {
		d, ok := s.Draft("tab-1")
		return ok && len(d.Nodes) == 1
	}, time.Second, 5*time.Millisecond)

	d, _ := s.Draft("tab-1")
	require.Len(t, d.Edges, 1, "existing edges carry over through node updates")
	assert.Equal(t, "e1", d.Edges[0].ID)
}

func TestSynchronizer_EdgesNeverNullWithoutPriorDraft(t *testing.T) {
	s, store := newTestSynchronizer(t)

	// No CreateDraft: the update targets a tab with no draft at all.
	s.ScheduleUpdate("tab-ghost", []types.CanvasNode{{ID: "n1"}}, types.WorkflowIdentity{}, true)

	assert.Eventually(t, func() bool {
		_, ok := s.Draft("tab-ghost")
		return ok
	}, time.Second, 5*time.Millisecond)

	persisted, err := store.LoadDrafts(context.Background())
	require.NoError(t, err)
	d := persisted["tab-ghost"]
	require.NotNil(t, d.Edges)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"edges":[]`)
}

func TestSynchronizer_UpdatesApplyInOrder(t *testing.T) {
	s, _ := newTestSynchronizer(t)

	for i := 1; i <= 20; i++ {
		nodes := make([]types.CanvasNode, i)
		s.ScheduleUpdate("tab-1", nodes, types.WorkflowIdentity{}, true)
	}

	assert.Eventually(t, func() bool {
		d, ok := s.Draft("tab-1")
		return ok && len(d.Nodes) == 20
	}, time.Second, 5*time.Millisecond)
}

func TestSynchronizer_RemoveDraft(t *testing.T) {
	s, store := newTestSynchronizer(t)

	s.CreateDraft("tab-1", types.TabDraft{IsUnsaved: true})
	s.CreateDraft("tab-2", types.TabDraft{IsUnsaved: true})
	s.RemoveDraft("tab-1")

	_, ok := s.Draft("tab-1")
	assert.False(t, ok)
	_, ok = s.Draft("tab-2")
	assert.True(t, ok)

	persisted, err := store.LoadDrafts(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, persisted, "tab-1")
	assert.Contains(t, persisted, "tab-2")
}

func TestSynchronizer_CallerNotBlockedByStore(t *testing.T) {
	slow := &slowStore{release: make(chan struct{})}
	s := NewSynchronizer(slow, nil, nil)
	defer s.Stop()
	defer close(slow.release)

	done := make(chan struct{})
	go func() {
		s.ScheduleUpdate("tab-1", nil, types.WorkflowIdentity{}, true)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("ScheduleUpdate blocked on persistence")
	}
}

type slowStore struct {
	release chan struct{}
}

func (s *slowStore) SaveDrafts(ctx context.Context, drafts map[string]types.TabDraft) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

func (s *slowStore) LoadDrafts(ctx context.Context) (map[string]types.TabDraft, error) {
	return map[string]types.TabDraft{}, nil
}

func TestKVStore_RoundTrip(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	defer kv.Close()
	s := NewKVStore(kv)

	ctx := context.Background()
	drafts := map[string]types.TabDraft{
		"tab-1": {Nodes: []types.CanvasNode{{ID: "n1"}}, WorkflowName: "wf", IsUnsaved: true},
	}
	require.NoError(t, s.SaveDrafts(ctx, drafts))

	loaded, err := s.LoadDrafts(ctx)
	require.NoError(t, err)
	require.Contains(t, loaded, "tab-1")
	assert.Equal(t, "wf", loaded["tab-1"].WorkflowName)
	assert.NotNil(t, loaded["tab-1"].Edges)
}

func TestKVStore_ErrorCodes(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	kv.Close()
	s := NewKVStore(kv)

	err := s.SaveDrafts(context.Background(), map[string]types.TabDraft{})
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrPersistFailed, typed.Code)
	assert.ErrorIs(t, err, kvstore.ErrStoreClosed)

	_, err = s.LoadDrafts(context.Background())
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrStoreUnavailable, typed.Code)
}

func TestKVStore_LoadMissingKey(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	defer kv.Close()
	s := NewKVStore(kv)

	loaded, err := s.LoadDrafts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

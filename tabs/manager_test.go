package tabs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/canvasflow/types"
)

type fakeRegistry struct {
	mu      sync.Mutex
	drafts  map[string]types.TabDraft
	removed []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{drafts: make(map[string]types.TabDraft)}
}

func (r *fakeRegistry) CreateDraft(tabID string, draft types.TabDraft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[tabID] = draft
}

func (r *fakeRegistry) RemoveDraft(tabID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, tabID)
	r.removed = append(r.removed, tabID)
}

func (r *fakeRegistry) Draft(tabID string) (types.TabDraft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[tabID]
	return d, ok
}

func (r *fakeRegistry) ScheduleUpdate(tabID string, nodes []types.CanvasNode, identity types.WorkflowIdentity, unsaved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.drafts[tabID]
	d.Nodes = nodes
	d.WorkflowID = identity.ID
	d.WorkflowName = identity.Name
	d.WorkflowDescription = identity.Description
	d.IsUnsaved = unsaved
	d.Normalize()
	r.drafts[tabID] = d
}

func (r *fakeRegistry) markSaved(tabID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.drafts[tabID]
	d.IsUnsaved = false
	r.drafts[tabID] = d
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateCreated, StateLoading, true},
		{StateCreated, StateReady, true},
		{StateLoading, StateReady, true},
		{StateReady, StateClosing, true},
		{StateClosing, StateReady, true},
		{StateClosing, StateRemoved, true},
		{StateRemoved, StateReady, false},
		{StateCreated, StateRemoved, false},
		{StateLoading, StateCreated, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestManager_CreateTab(t *testing.T) {
	reg := newFakeRegistry()
	m := NewManager(reg, nil, nil)

	tab := m.CreateTab()
	assert.Equal(t, StateCreated, tab.State())

	active, ok := m.ActiveTab()
	require.True(t, ok)
	assert.Equal(t, tab.TabID(), active.TabID())

	d, ok := reg.Draft(tab.TabID())
	require.True(t, ok, "a fresh tab registers a draft immediately")
	assert.Empty(t, d.Nodes)
	assert.NotNil(t, d.Edges)
	assert.Empty(t, d.WorkflowID)
	assert.True(t, d.IsUnsaved)
}

func TestManager_AssignWorkflow(t *testing.T) {
	reg := newFakeRegistry()
	m := NewManager(reg, nil, nil)
	tab := m.CreateTab()

	identity := types.WorkflowIdentity{ID: "wf-1", Name: "Pipeline", Description: "etl"}
	nodes := []types.CanvasNode{{ID: "n1", Kind: types.NodeKindAgent}}
	err := m.AssignWorkflow(tab.TabID(), identity, nodes, nil)
	require.NoError(t, err)

	assert.Equal(t, StateLoading, tab.State())
	assert.Equal(t, identity, tab.Identity())
	assert.NotNil(t, tab.Edges(), "nil edges normalize to empty")

	d, _ := reg.Draft(tab.TabID())
	assert.Equal(t, "wf-1", d.WorkflowID)
	assert.False(t, d.IsUnsaved, "freshly loaded content is saved content")

	require.NoError(t, m.MarkReady(tab.TabID()))
	assert.Equal(t, StateReady, tab.State())
}

func TestManager_AssignWorkflowUnknownTab(t *testing.T) {
	m := NewManager(newFakeRegistry(), nil, nil)
	err := m.AssignWorkflow("tab-missing", types.WorkflowIdentity{}, nil, nil)

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrTabNotFound, typed.Code)
}

func TestManager_MarkReadyTwiceFails(t *testing.T) {
	m := NewManager(newFakeRegistry(), nil, nil)
	tab := m.CreateTab()
	require.NoError(t, m.MarkReady(tab.TabID()))

	err := m.MarkReady(tab.TabID())
	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrInvalidTransition, typed.Code)
}

func TestManager_CloseSavedTab(t *testing.T) {
	reg := newFakeRegistry()
	confirmCalled := false
	m := NewManager(reg, func(string, types.TabDraft) bool {
		confirmCalled = true
		return false
	}, nil)

	first := m.CreateTab()
	second := m.CreateTab()
	reg.markSaved(second.TabID())

	closed, err := m.CloseTab(second.TabID())
	require.NoError(t, err)
	assert.True(t, closed)
	assert.False(t, confirmCalled, "saved tabs close without confirmation")
	assert.Equal(t, []string{second.TabID()}, reg.removed)

	_, ok := m.Tab(second.TabID())
	assert.False(t, ok)
	active, _ := m.ActiveTab()
	assert.Equal(t, first.TabID(), active.TabID())
}

func TestManager_CloseUnsavedTabConfirmed(t *testing.T) {
	reg := newFakeRegistry()
	var askedFor string
	m := NewManager(reg, func(tabID string, d types.TabDraft) bool {
		askedFor = tabID
		return true
	}, nil)

	m.CreateTab()
	tab := m.CreateTab()

	closed, err := m.CloseTab(tab.TabID())
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Equal(t, tab.TabID(), askedFor)
}

func TestManager_CloseUnsavedTabDeclined(t *testing.T) {
	reg := newFakeRegistry()
	m := NewManager(reg, func(string, types.TabDraft) bool { return false }, nil)

	tab := m.CreateTab()
	closed, err := m.CloseTab(tab.TabID())
	require.NoError(t, err)
	assert.False(t, closed)

	assert.Equal(t, StateReady, tab.State(), "declined close returns the tab to editing")
	_, ok := reg.Draft(tab.TabID())
	assert.True(t, ok, "draft survives a cancelled close")
}

func TestManager_LastTabSynthesis(t *testing.T) {
	reg := newFakeRegistry()
	m := NewManager(reg, nil, nil)

	tab := m.CreateTab()
	closed, err := m.CloseTab(tab.TabID())
	require.NoError(t, err)
	assert.True(t, closed)

	ids := m.Tabs()
	require.Len(t, ids, 1, "closing the last tab opens a fresh one")
	assert.NotEqual(t, tab.TabID(), ids[0])

	active, ok := m.ActiveTab()
	require.True(t, ok)
	assert.Equal(t, ids[0], active.TabID())
}

func TestManager_CloseRemovedTabFails(t *testing.T) {
	reg := newFakeRegistry()
	m := NewManager(reg, nil, nil)
	m.CreateTab()
	tab := m.CreateTab()

	_, err := m.CloseTab(tab.TabID())
	require.NoError(t, err)
	_, err = m.CloseTab(tab.TabID())

	var typed *types.Error
	require.ErrorAs(t, err, &typed, "a removed tab is gone")
	assert.Equal(t, types.ErrTabNotFound, typed.Code)
}

func TestTab_SetNodesIsAtomic(t *testing.T) {
	reg := newFakeRegistry()
	m := NewManager(reg, nil, nil)
	tab := m.CreateTab()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tab.SetNodes(func(current []types.CanvasNode) []types.CanvasNode {
				return append(current, types.CanvasNode{ID: "n"})
			})
		}()
	}
	wg.Wait()

	assert.Len(t, tab.Nodes(), 8, "every updater observed the latest snapshot")
}

package tabs

import (
	"sync"

	"github.com/BaSui01/canvasflow/types"
)

// Tab is one open canvas. It holds the live node and edge sets and the
// workflow identity; the durable counterpart lives in the draft map.
//
// Tab satisfies the delivery manager's canvas contract: SetNodes applies
// its updater synchronously under the tab's lock, so every caller
// observes a fresh snapshot.
type Tab struct {
	id string

	mu       sync.RWMutex
	state    State
	nodes    []types.CanvasNode
	edges    []types.Edge
	identity types.WorkflowIdentity
}

func newTab(id string) *Tab {
	return &Tab{
		id:    id,
		state: StateCreated,
		edges: []types.Edge{},
	}
}

// TabID returns the tab's identifier.
func (t *Tab) TabID() string { return t.id }

// State returns the current lifecycle state.
func (t *Tab) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// transition moves the tab to the next state, enforcing the lifecycle.
func (t *Tab) transition(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !CanTransition(t.state, to) {
		return invalidTransition(t.state, to)
	}
	t.state = to
	return nil
}

// SetNodes replaces the node set via the updater, atomically.
func (t *Tab) SetNodes(update func(current []types.CanvasNode) []types.CanvasNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = update(t.nodes)
}

// Nodes returns a snapshot of the node set.
func (t *Tab) Nodes() []types.CanvasNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]types.CanvasNode(nil), t.nodes...)
}

// SetEdges replaces the edge set. A nil argument becomes an empty slice.
func (t *Tab) SetEdges(edges []types.Edge) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if edges == nil {
		edges = []types.Edge{}
	}
	t.edges = edges
}

// Edges returns a snapshot of the edge set, never nil.
func (t *Tab) Edges() []types.Edge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]types.Edge{}, t.edges...)
}

// Identity returns the workflow identity the tab is editing.
func (t *Tab) Identity() types.WorkflowIdentity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.identity
}

// loadContent installs a saved workflow's content into the tab.
func (t *Tab) loadContent(identity types.WorkflowIdentity, nodes []types.CanvasNode, edges []types.Edge) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if edges == nil {
		edges = []types.Edge{}
	}
	t.identity = identity
	t.nodes = append([]types.CanvasNode(nil), nodes...)
	t.edges = edges
}

// draft builds the durable snapshot of the tab's current content.
func (t *Tab) draft(unsaved bool) types.TabDraft {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d := types.TabDraft{
		Nodes:               append([]types.CanvasNode(nil), t.nodes...),
		Edges:               append([]types.Edge(nil), t.edges...),
		WorkflowID:          t.identity.ID,
		WorkflowName:        t.identity.Name,
		WorkflowDescription: t.identity.Description,
		IsUnsaved:           unsaved,
	}
	d.Normalize()
	return d
}

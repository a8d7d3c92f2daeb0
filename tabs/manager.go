package tabs

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/canvasflow/types"
)

// DraftRegistry is the tab manager's view of the draft synchronizer.
type DraftRegistry interface {
	CreateDraft(tabID string, draft types.TabDraft)
	RemoveDraft(tabID string)
	Draft(tabID string) (types.TabDraft, bool)
	ScheduleUpdate(tabID string, nodes []types.CanvasNode, identity types.WorkflowIdentity, unsaved bool)
}

// ConfirmFunc decides whether a tab with unsaved changes may close.
// Returning false cancels the close and the tab stays open.
type ConfirmFunc func(tabID string, draft types.TabDraft) bool

// tabNotFound builds the structured error for an unknown tab id.
func tabNotFound(tabID string) *types.Error {
	return types.NewError(types.ErrTabNotFound, fmt.Sprintf("tab %s not found", tabID))
}

// Manager owns the open tab set, the active-tab pointer, and the
// lifecycle rules around opening and closing tabs.
type Manager struct {
	mu       sync.RWMutex
	tabs     map[string]*Tab
	order    []string
	activeID string

	drafts  DraftRegistry
	confirm ConfirmFunc
	logger  *zap.Logger
}

// NewManager creates a tab manager. A nil confirm closes unsaved tabs
// without asking; a nil logger falls back to a nop.
func NewManager(drafts DraftRegistry, confirm ConfirmFunc, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if confirm == nil {
		confirm = func(string, types.TabDraft) bool { return true }
	}
	return &Manager{
		tabs:    make(map[string]*Tab),
		drafts:  drafts,
		confirm: confirm,
		logger:  logger.With(zap.String("component", "tab_manager")),
	}
}

// CreateTab opens a new empty tab, registers its draft, and makes it
// the active tab.
func (m *Manager) CreateTab() *Tab {
	tab := newTab("tab-" + uuid.NewString())

	m.mu.Lock()
	m.tabs[tab.id] = tab
	m.order = append(m.order, tab.id)
	m.activeID = tab.id
	m.mu.Unlock()

	// A fresh tab is an unsaved, unnamed workflow until one is loaded
	// or the user saves.
	m.drafts.CreateDraft(tab.id, tab.draft(true))

	m.logger.Info("tab created", zap.String("tab_id", tab.id))
	return tab
}

// Tab returns an open tab by id.
func (m *Manager) Tab(tabID string) (*Tab, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tabs[tabID]
	return t, ok
}

// ActiveTab returns the currently focused tab, if any.
func (m *Manager) ActiveTab() (*Tab, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tabs[m.activeID]
	return t, ok
}

// Activate focuses an open tab.
func (m *Manager) Activate(tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tabs[tabID]; !ok {
		return tabNotFound(tabID)
	}
	m.activeID = tabID
	return nil
}

// Tabs returns the open tab ids in creation order.
func (m *Manager) Tabs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// AssignWorkflow loads a saved workflow into a tab. The tab passes
// through the loading state and its draft is rewritten as saved content.
func (m *Manager) AssignWorkflow(tabID string, identity types.WorkflowIdentity, nodes []types.CanvasNode, edges []types.Edge) error {
	tab, ok := m.Tab(tabID)
	if !ok {
		return tabNotFound(tabID)
	}
	if err := tab.transition(StateLoading); err != nil {
		return err
	}

	tab.loadContent(identity, nodes, edges)
	m.drafts.ScheduleUpdate(tabID, tab.Nodes(), identity, false)

	m.logger.Info("workflow assigned",
		zap.String("tab_id", tabID),
		zap.String("workflow_id", identity.ID),
	)
	return nil
}

// MarkReady signals that the tab's canvas has mounted.
func (m *Manager) MarkReady(tabID string) error {
	tab, ok := m.Tab(tabID)
	if !ok {
		return tabNotFound(tabID)
	}
	return tab.transition(StateReady)
}

// CloseTab closes a tab. An unsaved draft goes through the confirmation
// hook first; a declined confirmation leaves the tab open. Closing the
// last tab synthesizes a fresh empty one so the editor is never
// tabless. Returns true when the tab was actually removed.
func (m *Manager) CloseTab(tabID string) (bool, error) {
	tab, ok := m.Tab(tabID)
	if !ok {
		return false, tabNotFound(tabID)
	}
	if err := tab.transition(StateClosing); err != nil {
		return false, err
	}

	if d, ok := m.drafts.Draft(tabID); ok && d.IsUnsaved {
		if !m.confirm(tabID, d) {
			// Close cancelled; back to an editable tab.
			if err := tab.transition(StateReady); err != nil {
				return false, err
			}
			m.logger.Debug("tab close cancelled", zap.String("tab_id", tabID))
			return false, nil
		}
	}

	if err := tab.transition(StateRemoved); err != nil {
		return false, err
	}

	m.mu.Lock()
	delete(m.tabs, tabID)
	for i, id := range m.order {
		if id == tabID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	wasActive := m.activeID == tabID
	if wasActive && len(m.order) > 0 {
		m.activeID = m.order[len(m.order)-1]
	}
	empty := len(m.order) == 0
	m.mu.Unlock()

	m.drafts.RemoveDraft(tabID)
	m.logger.Info("tab closed", zap.String("tab_id", tabID))

	if empty {
		m.CreateTab()
	}
	return true, nil
}

package types

// WorkflowIdentity is the backend identity a tab's draft is associated
// with. A zero ID means the tab holds a new, never-saved workflow.
type WorkflowIdentity struct {
	ID          string `json:"workflowId,omitempty"`
	Name        string `json:"workflowName"`
	Description string `json:"workflowDescription"`
}

// TabDraft is the durable off-canvas snapshot of one tab's editable
// state. Edges is always a non-nil slice in a well-formed draft; use
// Normalize after decoding external data.
type TabDraft struct {
	Nodes               []CanvasNode `json:"nodes"`
	Edges               []Edge       `json:"edges"`
	WorkflowID          string       `json:"workflowId,omitempty"`
	WorkflowName        string       `json:"workflowName"`
	WorkflowDescription string       `json:"workflowDescription"`
	IsUnsaved           bool         `json:"isUnsaved"`
}

// Normalize replaces nil slices with empty ones so persisted drafts
// never carry null nodes/edges.
func (d *TabDraft) Normalize() {
	if d.Nodes == nil {
		d.Nodes = []CanvasNode{}
	}
	if d.Edges == nil {
		d.Edges = []Edge{}
	}
}

// Identity returns the draft's workflow identity.
func (d TabDraft) Identity() WorkflowIdentity {
	return WorkflowIdentity{
		ID:          d.WorkflowID,
		Name:        d.WorkflowName,
		Description: d.WorkflowDescription,
	}
}

// Clone returns a deep-enough copy: slices are copied, node config maps
// are shared (treated as immutable once constructed).
func (d TabDraft) Clone() TabDraft {
	out := d
	out.Nodes = append([]CanvasNode(nil), d.Nodes...)
	out.Edges = append([]Edge(nil), d.Edges...)
	out.Normalize()
	return out
}

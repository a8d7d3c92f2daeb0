package types

// Position represents node coordinates on the visual canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns the position offset by another position.
func (p Position) Add(offset Position) Position {
	return Position{X: p.X + offset.X, Y: p.Y + offset.Y}
}

// NodeKind tags a canvas node with its renderer type.
type NodeKind string

const (
	// NodeKindAgent is the node kind for agents injected from the catalog.
	NodeKindAgent NodeKind = "agent"
)

// DefaultNodeLabel is substituted when a catalog item carries neither a
// name nor a label.
const DefaultNodeLabel = "Unnamed Agent"

// NodeData is the payload carried by a canvas node.
// After construction via NewCanvasNode, Label and Name are never empty,
// Description is never unset beyond the empty string, and Config is
// never nil.
type NodeData struct {
	Label       string         `json:"label"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Config      map[string]any `json:"config"`
}

// CanvasNode represents a single node on the canvas.
type CanvasNode struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge represents a connection between two canvas nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// AgentItem is an item selected in the catalog view. All fields except
// ID are optional; NewCanvasNode applies defaults for missing ones.
type AgentItem struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Label       string         `json:"label,omitempty"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

// NewCanvasNode builds a canvas node from a catalog item at the given
// position. Missing name/label both fall back to DefaultNodeLabel; a
// name backfills a missing label and vice versa. Config and Description
// are normalized so downstream consumers never see nil.
func NewCanvasNode(id string, item AgentItem, pos Position) CanvasNode {
	label := item.Label
	name := item.Name
	switch {
	case label == "" && name == "":
		label = DefaultNodeLabel
		name = DefaultNodeLabel
	case label == "":
		label = name
	case name == "":
		name = label
	}

	cfg := item.Config
	if cfg == nil {
		cfg = map[string]any{}
	}

	return CanvasNode{
		ID:       id,
		Kind:     NodeKindAgent,
		Position: pos,
		Data: NodeData{
			Label:       label,
			Name:        name,
			Description: item.Description,
			Config:      cfg,
		},
	}
}

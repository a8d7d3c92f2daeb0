package layout

import "github.com/BaSui01/canvasflow/types"

// Strategy selects the placement algorithm for a batch of new nodes.
type Strategy string

const (
	// StrategyHorizontal places new nodes in a row to the right of the
	// rightmost existing node.
	StrategyHorizontal Strategy = "horizontal"

	// StrategyVertical places new nodes in a column one horizontal step
	// right of the rightmost existing node.
	StrategyVertical Strategy = "vertical"

	// StrategyGrid fills rows of ColumnsPerRow nodes, anchored right of
	// and below the existing node set.
	StrategyGrid Strategy = "grid"
)

// Options controls spacing and the starting anchor on an empty canvas.
type Options struct {
	HorizontalSpacing float64 `yaml:"horizontal_spacing" json:"horizontal_spacing"`
	VerticalSpacing   float64 `yaml:"vertical_spacing" json:"vertical_spacing"`
	DefaultX          float64 `yaml:"default_x" json:"default_x"`
	DefaultY          float64 `yaml:"default_y" json:"default_y"`

	// ColumnsPerRow only applies to StrategyGrid.
	ColumnsPerRow int `yaml:"columns_per_row" json:"columns_per_row"`
}

// DefaultOptions returns the process-wide placement defaults.
func DefaultOptions() Options {
	return Options{
		HorizontalSpacing: 200,
		VerticalSpacing:   150,
		DefaultX:          250,
		DefaultY:          250,
		ColumnsPerRow:     3,
	}
}

// DefaultRelativeOffset is the offset used by RelativePosition when the
// caller passes a zero offset.
var DefaultRelativeOffset = types.Position{X: 200, Y: 0}

// ComputePositions returns exactly count coordinate pairs for new nodes,
// none coincident, positioned relative to the existing node set per the
// chosen strategy. count <= 0 returns an empty slice. An unknown
// strategy falls back to StrategyVertical, the default used when
// accepting catalog deliveries.
func ComputePositions(existing []types.CanvasNode, count int, strategy Strategy, opts Options) []types.Position {
	if count <= 0 {
		return []types.Position{}
	}
	if opts.ColumnsPerRow <= 0 {
		opts.ColumnsPerRow = DefaultOptions().ColumnsPerRow
	}

	switch strategy {
	case StrategyHorizontal:
		return horizontalPositions(existing, count, opts)
	case StrategyGrid:
		return gridPositions(existing, count, opts)
	case StrategyVertical:
		return verticalPositions(existing, count, opts)
	default:
		return verticalPositions(existing, count, opts)
	}
}

// RelativePosition returns a single position offset from a reference
// node. A zero offset means DefaultRelativeOffset.
func RelativePosition(reference types.CanvasNode, offset types.Position) types.Position {
	if offset == (types.Position{}) {
		offset = DefaultRelativeOffset
	}
	return reference.Position.Add(offset)
}

func horizontalPositions(existing []types.CanvasNode, count int, opts Options) []types.Position {
	positions := make([]types.Position, 0, count)
	if len(existing) == 0 {
		for i := 0; i < count; i++ {
			positions = append(positions, types.Position{
				X: opts.DefaultX + float64(i)*opts.HorizontalSpacing,
				Y: opts.DefaultY,
			})
		}
		return positions
	}

	maxX := maxNodeX(existing)
	for i := 0; i < count; i++ {
		positions = append(positions, types.Position{
			X: maxX + opts.HorizontalSpacing*float64(i+1),
			Y: opts.DefaultY,
		})
	}
	return positions
}

func verticalPositions(existing []types.CanvasNode, count int, opts Options) []types.Position {
	x := opts.DefaultX
	if len(existing) > 0 {
		x = maxNodeX(existing) + opts.HorizontalSpacing
	}

	positions := make([]types.Position, 0, count)
	for i := 0; i < count; i++ {
		positions = append(positions, types.Position{
			X: x,
			Y: opts.DefaultY + float64(i)*opts.VerticalSpacing,
		})
	}
	return positions
}

func gridPositions(existing []types.CanvasNode, count int, opts Options) []types.Position {
	anchorX := opts.DefaultX
	anchorY := opts.DefaultY
	if len(existing) > 0 {
		anchorX = maxNodeX(existing) + opts.HorizontalSpacing
		if maxY := maxNodeY(existing); maxY > anchorY {
			anchorY = maxY
		}
	}

	positions := make([]types.Position, 0, count)
	for i := 0; i < count; i++ {
		row := i / opts.ColumnsPerRow
		col := i % opts.ColumnsPerRow
		positions = append(positions, types.Position{
			X: anchorX + float64(col)*opts.HorizontalSpacing,
			Y: anchorY + float64(row)*opts.VerticalSpacing,
		})
	}
	return positions
}

func maxNodeX(nodes []types.CanvasNode) float64 {
	maxX := nodes[0].Position.X
	for _, n := range nodes[1:] {
		if n.Position.X > maxX {
			maxX = n.Position.X
		}
	}
	return maxX
}

func maxNodeY(nodes []types.CanvasNode) float64 {
	maxY := nodes[0].Position.Y
	for _, n := range nodes[1:] {
		if n.Position.Y > maxY {
			maxY = n.Position.Y
		}
	}
	return maxY
}

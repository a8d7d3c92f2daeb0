// Package tabs manages the open tab set and each tab's lifecycle, from
// creation through closing, including the rule that the editor always
// keeps at least one tab open.
package tabs

import (
	"fmt"

	"github.com/BaSui01/canvasflow/types"
)

// State is a tab's lifecycle state.
type State string

const (
	StateCreated State = "created" // Tab exists, canvas not yet populated
	StateLoading State = "loading" // A saved workflow is being loaded into the tab
	StateReady   State = "ready"   // Canvas mounted and editable
	StateClosing State = "closing" // Close requested, awaiting confirmation
	StateRemoved State = "removed" // Tab torn down, draft deleted
)

// validTransitions defines the legal lifecycle moves.
var validTransitions = map[State][]State{
	StateCreated: {StateLoading, StateReady, StateClosing},
	StateLoading: {StateReady, StateClosing},
	StateReady:   {StateLoading, StateClosing}, // Reloading a different workflow is allowed
	StateClosing: {StateReady, StateRemoved},   // Close can be cancelled at the confirmation prompt
	StateRemoved: {},
}

// CanTransition reports whether the move from one state to another is legal.
func CanTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// invalidTransition builds the structured error for an illegal
// lifecycle move.
func invalidTransition(from, to State) *types.Error {
	return types.NewError(types.ErrInvalidTransition,
		fmt.Sprintf("invalid tab state transition: %s -> %s", from, to))
}

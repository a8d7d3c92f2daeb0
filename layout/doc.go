// Package layout computes non-overlapping canvas coordinates for newly
// inserted nodes.
//
// All functions are pure: they read no external state, use no clock and
// no randomness, so identical inputs always produce identical outputs.
// ComputePositions is total — a non-positive count yields an empty
// slice, and negative or zero existing-node coordinates are handled
// like any other value.
package layout

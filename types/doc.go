// Package types defines the shared data model of the canvasflow core:
// canvas nodes and edges, catalog item payloads, tab drafts, pending
// delivery records, and the unified error type.
//
// The types package is the lowest-level package with no internal
// dependencies, so every other package can import it without creating
// circular imports.
package types

// Package draft keeps a durable off-canvas snapshot of each tab's
// editable state current with minimal latency.
//
// Updates are deferred to a dispatcher goroutine rather than applied
// inline, so the caller that triggered a canvas mutation never blocks
// on persistence, and the update observes the fully-updated node list.
// Persistence of the full draft map is best effort, last write wins.
package draft

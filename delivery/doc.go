// Package delivery accepts batches of externally-selected catalog items
// into the currently active tab's canvas.
//
// Two independent channels feed each canvas instance: a direct
// in-process broadcast (primary), and a durable fallback record polled
// from the shared key-value store (secondary, covering instances whose
// broadcast listener was not yet attached at selection time).
//
// Known race, by contract: any instance that polls first deletes a
// mismatched or stale fallback record. A legitimate target tab that has
// not started polling can therefore lose a fallback delivery to another
// instance's earlier poll. The broadcast channel being the primary path
// bounds the impact; the resolution policy lives in a single spot,
// Inspect, should it ever be revisited.
package delivery

package delivery

import (
	"time"

	"github.com/BaSui01/canvasflow/types"
)

// Verdict classifies the outcome of inspecting a stored fallback record.
// Every verdict except VerdictNone implies the record must be deleted:
// accepted records are consumed, mismatched records are presumed covered
// by the broadcast channel or abandoned, stale records are void, and
// malformed values are cleaned up fail-safe.
type Verdict int

const (
	// VerdictNone: no record present; nothing to do.
	VerdictNone Verdict = iota

	// VerdictAccepted: record targets this tab and is within its TTL.
	VerdictAccepted

	// VerdictMismatch: record targets a different tab.
	VerdictMismatch

	// VerdictStale: record targets this tab but has outlived its TTL.
	VerdictStale

	// VerdictMalformed: stored value is not a valid record.
	VerdictMalformed
)

// String returns the verdict's metric label.
func (v Verdict) String() string {
	switch v {
	case VerdictNone:
		return "none"
	case VerdictAccepted:
		return "accepted"
	case VerdictMismatch:
		return "mismatch"
	case VerdictStale:
		return "stale"
	case VerdictMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Inspect decides what to do with a raw stored record. Pure: the caller
// supplies the clock, so TTL boundaries are exact and testable. The
// staleness boundary is inclusive — an age of exactly ttl is stale.
func Inspect(raw, ownTabID string, now time.Time, ttl time.Duration) (types.PendingDeliveryRecord, Verdict) {
	rec, err := types.DecodePendingDeliveryRecord(raw)
	if err != nil {
		return types.PendingDeliveryRecord{}, VerdictMalformed
	}
	if rec.TabID != ownTabID {
		return rec, VerdictMismatch
	}
	if rec.Expired(now, ttl) {
		return rec, VerdictStale
	}
	return rec, VerdictAccepted
}

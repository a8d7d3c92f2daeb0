package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Well-known channel names shared between the catalog view and canvas
// instances. Both sides must agree on these exactly.
const (
	// EventAddAgentsToWorkflow is the broadcast event name for channel A.
	EventAddAgentsToWorkflow = "addAgentsToWorkflow"

	// PendingAgentsKey is the durable store key for channel B.
	PendingAgentsKey = "pendingAgentsToAdd"
)

// DefaultRecordTTL is the validity window for a pending delivery record.
// A record older than this must never be accepted, even when the tab id
// matches.
const DefaultRecordTTL = 10 * time.Second

// PendingDeliveryRecord is the channel B fallback payload written by the
// catalog view when it cannot guarantee the target canvas instance will
// observe a direct broadcast. The store key holds at most one record;
// a later selection overwrites an unconsumed earlier one.
type PendingDeliveryRecord struct {
	// DeliveryID ties the record to the broadcast carrying the same
	// selection, so a canvas that sees both delivers only once. Records
	// without one (older writers) are still valid.
	DeliveryID string `json:"deliveryId,omitempty"`

	TabID     string      `json:"tabId"`
	Agents    []AgentItem `json:"agents"`
	Timestamp int64       `json:"timestamp"` // epoch milliseconds
}

// NewPendingDeliveryRecord creates a record stamped with the given time
// and a fresh delivery id.
func NewPendingDeliveryRecord(tabID string, agents []AgentItem, now time.Time) PendingDeliveryRecord {
	return PendingDeliveryRecord{
		DeliveryID: uuid.NewString(),
		TabID:      tabID,
		Agents:     agents,
		Timestamp:  now.UnixMilli(),
	}
}

// Age returns how long ago the record was written, relative to now.
func (r PendingDeliveryRecord) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-r.Timestamp) * time.Millisecond
}

// Expired reports whether the record has outlived ttl at the given time.
// The boundary is inclusive: age == ttl is already expired.
func (r PendingDeliveryRecord) Expired(now time.Time, ttl time.Duration) bool {
	return r.Age(now) >= ttl
}

// Validate checks structural validity of a decoded record.
func (r PendingDeliveryRecord) Validate() error {
	if r.TabID == "" {
		return fmt.Errorf("pending delivery record: missing tabId")
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("pending delivery record: missing timestamp")
	}
	return nil
}

// Encode serializes the record for the durable store.
func (r PendingDeliveryRecord) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pending delivery record: %w", err)
	}
	return string(data), nil
}

// DecodePendingDeliveryRecord parses and validates a stored record.
// Failures carry the ErrRecordMalformed code.
func DecodePendingDeliveryRecord(raw string) (PendingDeliveryRecord, error) {
	var r PendingDeliveryRecord
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return PendingDeliveryRecord{}, NewError(ErrRecordMalformed, "failed to unmarshal pending delivery record").WithCause(err)
	}
	if err := r.Validate(); err != nil {
		return PendingDeliveryRecord{}, NewError(ErrRecordMalformed, "invalid pending delivery record").WithCause(err)
	}
	return r, nil
}

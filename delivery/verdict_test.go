package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/canvasflow/types"
)

func encodeRecord(t *testing.T, rec types.PendingDeliveryRecord) string {
	t.Helper()
	raw, err := rec.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

func TestInspect(t *testing.T) {
	now := time.Now()
	ttl := types.DefaultRecordTTL

	recordAged := func(tabID string, age time.Duration) string {
		return encodeRecord(t, types.PendingDeliveryRecord{
			TabID:     tabID,
			Agents:    []types.AgentItem{{ID: "a1"}},
			Timestamp: now.Add(-age).UnixMilli(),
		})
	}

	tests := []struct {
		name    string
		raw     string
		verdict Verdict
	}{
		{"fresh match accepted", recordAged("tab-1", 5000*time.Millisecond), VerdictAccepted},
		{"ttl boundary minus one accepted", recordAged("tab-1", 9999*time.Millisecond), VerdictAccepted},
		{"ttl boundary rejected", recordAged("tab-1", 10000*time.Millisecond), VerdictStale},
		{"beyond ttl rejected", recordAged("tab-1", time.Minute), VerdictStale},
		{"fresh mismatch", recordAged("tab-2", 0), VerdictMismatch},
		{"stale mismatch still mismatch", recordAged("tab-2", time.Minute), VerdictMismatch},
		{"garbage", "{not json", VerdictMalformed},
		{"structurally invalid", `{"agents":[]}`, VerdictMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, verdict := Inspect(tt.raw, "tab-1", now, ttl)
			assert.Equal(t, tt.verdict, verdict)
		})
	}
}

func TestInspect_ReturnsDecodedRecord(t *testing.T) {
	now := time.Now()
	raw := encodeRecord(t, types.NewPendingDeliveryRecord("tab-1", []types.AgentItem{{ID: "a1"}, {ID: "a2"}}, now))

	rec, verdict := Inspect(raw, "tab-1", now, types.DefaultRecordTTL)
	assert.Equal(t, VerdictAccepted, verdict)
	assert.Len(t, rec.Agents, 2)
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "accepted", VerdictAccepted.String())
	assert.Equal(t, "mismatch", VerdictMismatch.String())
	assert.Equal(t, "stale", VerdictStale.String())
	assert.Equal(t, "malformed", VerdictMalformed.String())
	assert.Equal(t, "none", VerdictNone.String())
}

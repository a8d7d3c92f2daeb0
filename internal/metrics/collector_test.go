package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_RecordDelivery(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("canvasflow", reg, nil)

	c.RecordDelivery("fallback", "accepted")
	c.RecordDelivery("fallback", "stale")
	c.RecordDelivery("broadcast", "accepted")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveriesTotal.WithLabelValues("fallback", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveriesTotal.WithLabelValues("fallback", "stale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deliveriesTotal.WithLabelValues("broadcast", "accepted")))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.RecordDelivery("fallback", "accepted")
	c.RecordDeliveryAge(time.Second)
	c.RecordNodesInserted(3)
	c.RecordDraftUpdate(time.Millisecond)
	c.RecordKVOp("get", nil)
	c.WSConnected()
	c.WSDisconnected()
}

func TestCollector_WSConnections(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("canvasflow", reg, nil)

	c.WSConnected()
	c.WSConnected()
	c.WSDisconnected()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.wsConnections))
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 Metrics collector
// =============================================================================

// Collector holds every prometheus metric the core emits. All methods
// are nil-safe so components can run without a collector wired in.
type Collector struct {
	// Delivery metrics
	deliveriesTotal *prometheus.CounterVec
	deliveryAge     prometheus.Histogram
	nodesInserted   prometheus.Counter

	// Draft metrics
	draftUpdatesTotal    prometheus.Counter
	draftPersistDuration prometheus.Histogram

	// Store metrics
	kvOpsTotal *prometheus.CounterVec

	// Gateway metrics
	wsConnections prometheus.Gauge

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered against reg.
// A nil reg uses the default registerer; a nil logger uses a nop.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// Delivery metrics
	c.deliveriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery inspections by channel and verdict",
		},
		[]string{"channel", "verdict"},
	)

	c.deliveryAge = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_record_age_seconds",
			Help:      "Age of accepted fallback records at consumption time",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	c.nodesInserted = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_inserted_total",
			Help:      "Canvas nodes inserted through the delivery manager",
		},
	)

	// Draft metrics
	c.draftUpdatesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_updates_total",
			Help:      "Scheduled draft synchronizer updates",
		},
	)

	c.draftPersistDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "draft_persist_duration_seconds",
			Help:      "Duration of full draft map persistence",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Store metrics
	c.kvOpsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kv_ops_total",
			Help:      "Key-value store operations by op and status",
		},
		[]string{"op", "status"},
	)

	// Gateway metrics
	c.wsConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Currently connected canvas websocket clients",
		},
	)

	return c
}

// RecordDelivery counts one delivery inspection outcome.
func (c *Collector) RecordDelivery(channel, verdict string) {
	if c == nil {
		return
	}
	c.deliveriesTotal.WithLabelValues(channel, verdict).Inc()
}

// RecordDeliveryAge observes the age of an accepted fallback record.
func (c *Collector) RecordDeliveryAge(age time.Duration) {
	if c == nil {
		return
	}
	c.deliveryAge.Observe(age.Seconds())
}

// RecordNodesInserted counts nodes added to a canvas.
func (c *Collector) RecordNodesInserted(n int) {
	if c == nil {
		return
	}
	c.nodesInserted.Add(float64(n))
}

// RecordDraftUpdate counts one synchronizer update and its persist time.
func (c *Collector) RecordDraftUpdate(persist time.Duration) {
	if c == nil {
		return
	}
	c.draftUpdatesTotal.Inc()
	c.draftPersistDuration.Observe(persist.Seconds())
}

// RecordKVOp counts one key-value store operation.
func (c *Collector) RecordKVOp(op string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.kvOpsTotal.WithLabelValues(op, status).Inc()
}

// WSConnected tracks a new gateway websocket client.
func (c *Collector) WSConnected() {
	if c == nil {
		return
	}
	c.wsConnections.Inc()
}

// WSDisconnected tracks a departed gateway websocket client.
func (c *Collector) WSDisconnected() {
	if c == nil {
		return
	}
	c.wsConnections.Dec()
}

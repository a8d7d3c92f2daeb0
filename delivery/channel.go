package delivery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/canvasflow/internal/metrics"
	"github.com/BaSui01/canvasflow/store"
	"github.com/BaSui01/canvasflow/types"
)

// Batch is a delivery addressed to one tab. DeliveryID is shared by the
// two copies of a selection that went out on both channels; it may be
// empty for payloads from writers that predate it.
type Batch struct {
	DeliveryID string
	TabID      string
	Agents     []types.AgentItem
}

// Channel is one path a batch can arrive on. Both the broadcast
// subscription buffer and the fallback-store poller implement it, so a
// third transport (e.g. a message broker) plugs into the manager
// without touching acceptance logic.
type Channel interface {
	// TryReceive returns the next batch for the owning tab, if any.
	// It never blocks.
	TryReceive(ctx context.Context) (Batch, bool)
}

// Channel metric labels.
const (
	channelBroadcast = "broadcast"
	channelFallback  = "fallback"
)

// broadcastChannel buffers batches pushed by the bus subscription.
type broadcastChannel struct {
	batches chan Batch
	notify  chan struct{}
	logger  *zap.Logger
}

func newBroadcastChannel(logger *zap.Logger) *broadcastChannel {
	return &broadcastChannel{
		batches: make(chan Batch, 16),
		notify:  make(chan struct{}, 1),
		logger:  logger,
	}
}

// Offer enqueues a batch from the bus handler. On overflow the batch is
// dropped with a warning; the fallback record covers the loss.
func (c *broadcastChannel) Offer(b Batch) {
	select {
	case c.batches <- b:
		select {
		case c.notify <- struct{}{}:
		default:
		}
	default:
		c.logger.Warn("broadcast buffer full, dropping batch",
			zap.String("tab_id", b.TabID),
			zap.Int("items", len(b.Agents)),
		)
	}
}

// TryReceive implements Channel.
func (c *broadcastChannel) TryReceive(ctx context.Context) (Batch, bool) {
	select {
	case b := <-c.batches:
		return b, true
	default:
		return Batch{}, false
	}
}

// fallbackChannel inspects the shared durable store for a pending
// delivery record. Every inspection that finds a record deletes it,
// whatever the verdict.
type fallbackChannel struct {
	store   store.KeyValueStore
	tabID   string
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Collector
	logger  *zap.Logger
}

// TryReceive implements Channel. A missing record is a strict no-op: no
// store mutation, no canvas mutation.
func (c *fallbackChannel) TryReceive(ctx context.Context) (Batch, bool) {
	raw, err := c.store.Get(ctx, types.PendingAgentsKey)
	if err != nil {
		if err != store.ErrNotFound {
			c.logger.Error("failed to read pending delivery record", zap.Error(err))
		}
		return Batch{}, false
	}

	rec, verdict := Inspect(raw, c.tabID, c.now(), c.ttl)
	c.metrics.RecordDelivery(channelFallback, verdict.String())

	// The record is consumed (or condemned) the moment it is inspected;
	// leaving it behind would reprocess it forever.
	if err := c.store.Remove(ctx, types.PendingAgentsKey); err != nil {
		c.logger.Error("failed to delete pending delivery record", zap.Error(err))
	}

	switch verdict {
	case VerdictAccepted:
		c.metrics.RecordDeliveryAge(rec.Age(c.now()))
		return Batch{DeliveryID: rec.DeliveryID, TabID: rec.TabID, Agents: rec.Agents}, true
	case VerdictMismatch:
		c.logger.Debug("discarded pending record for another tab",
			zap.String("own_tab", c.tabID),
			zap.String("target_tab", rec.TabID),
		)
	case VerdictStale:
		c.logger.Info("discarded stale pending record",
			zap.String("tab_id", rec.TabID),
			zap.Duration("age", rec.Age(c.now())),
		)
	case VerdictMalformed:
		c.logger.Warn("deleted malformed pending record", zap.String("raw", raw))
	}
	return Batch{}, false
}

// discardOwn deletes the pending record left behind by a broadcast the
// owning tab already accepted. Without it a re-mounted instance of the
// same tab could pick the copy up within its TTL and insert the batch
// twice. A record carrying a different delivery id is someone else's
// and is left alone.
func (c *fallbackChannel) discardOwn(ctx context.Context, deliveryID string) {
	raw, err := c.store.Get(ctx, types.PendingAgentsKey)
	if err != nil {
		return
	}
	rec, err := types.DecodePendingDeliveryRecord(raw)
	if err != nil || rec.TabID != c.tabID {
		return
	}
	if deliveryID != "" && rec.DeliveryID != "" && rec.DeliveryID != deliveryID {
		return
	}
	if err := c.store.Remove(ctx, types.PendingAgentsKey); err != nil {
		c.logger.Error("failed to delete duplicate pending record", zap.Error(err))
		return
	}
	c.logger.Debug("discarded pending record already delivered by broadcast",
		zap.String("tab_id", c.tabID),
	)
}

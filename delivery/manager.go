package delivery

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/canvasflow/bus"
	"github.com/BaSui01/canvasflow/internal/metrics"
	"github.com/BaSui01/canvasflow/layout"
	"github.com/BaSui01/canvasflow/store"
	"github.com/BaSui01/canvasflow/types"
)

// Canvas is the manager's view of its tab's canvas state. SetNodes must
// apply the updater against the current node set synchronously, so that
// overlapping insertions each observe a fresh snapshot.
type Canvas interface {
	TabID() string
	SetNodes(update func(current []types.CanvasNode) []types.CanvasNode)
	Identity() types.WorkflowIdentity
}

// DraftScheduler defers a draft update off the mutating call path.
type DraftScheduler interface {
	ScheduleUpdate(tabID string, nodes []types.CanvasNode, identity types.WorkflowIdentity, unsaved bool)
}

// Config tunes the delivery manager.
type Config struct {
	// PollInterval is the fallback-store inspection cadence.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// MaxPolls caps the repeating inspections; the mount-time inspection
	// does not count against it.
	MaxPolls int `yaml:"max_polls" json:"max_polls"`

	// RecordTTL is the validity window for fallback records.
	RecordTTL time.Duration `yaml:"record_ttl" json:"record_ttl"`

	// InsertionDebounce is how long the insertion-in-progress flag stays
	// raised after an accepted batch.
	InsertionDebounce time.Duration `yaml:"insertion_debounce" json:"insertion_debounce"`

	// Layout provides placement spacing for accepted batches.
	Layout layout.Options `yaml:"layout" json:"layout"`
}

// DefaultConfig returns the production delivery settings.
func DefaultConfig() Config {
	return Config{
		PollInterval:      time.Second,
		MaxPolls:          10,
		RecordTTL:         types.DefaultRecordTTL,
		InsertionDebounce: time.Second,
		Layout:            layout.DefaultOptions(),
	}
}

// Manager orchestrates acceptance of catalog selections into one canvas
// instance. One manager per live canvas; its lifecycle follows the
// instance's mount/unmount.
type Manager struct {
	canvas  Canvas
	bus     bus.EventBus
	drafts  DraftScheduler
	config  Config
	metrics *metrics.Collector
	logger  *zap.Logger

	broadcast *broadcastChannel
	fallback  *fallbackChannel
	subID     string

	inserting   atomic.Bool
	insertTimer *time.Timer

	seenMu sync.Mutex
	seen   map[string]time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewManager creates a delivery manager for one canvas instance.
// collector may be nil; a nil logger falls back to a nop.
func NewManager(canvas Canvas, eventBus bus.EventBus, kv store.KeyValueStore, drafts DraftScheduler, config Config, collector *metrics.Collector, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(
		zap.String("component", "delivery_manager"),
		zap.String("tab_id", canvas.TabID()),
	)

	m := &Manager{
		canvas:    canvas,
		bus:       eventBus,
		drafts:    drafts,
		config:    config,
		metrics:   collector,
		logger:    logger,
		broadcast: newBroadcastChannel(logger),
		seen:      make(map[string]time.Time),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	m.fallback = &fallbackChannel{
		store:   kv,
		tabID:   canvas.TabID(),
		ttl:     config.RecordTTL,
		now:     time.Now,
		metrics: collector,
		logger:  logger,
	}
	return m
}

// Start attaches the broadcast subscription, runs the mount-time
// fallback inspection, and launches the polling loop. A manager starts
// at most once; a second Start is an error, so an instance can never
// hold two polling timers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("delivery manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.subID = m.bus.Subscribe(bus.EventAddAgentsToWorkflow, m.onBroadcast)

	// Mount-time inspection: catches a record written before this
	// instance existed, without waiting for the first tick.
	m.inspectFallback(ctx)

	go m.run()

	m.logger.Info("delivery manager started",
		zap.Duration("poll_interval", m.config.PollInterval),
		zap.Int("max_polls", m.config.MaxPolls),
	)
	return nil
}

// Stop tears the instance down: unsubscribes from the broadcast bus,
// cancels the polling timer, and clears the insertion flag timer.
// In-flight draft persistence is not cancelled. Safe to call twice.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	if m.insertTimer != nil {
		m.insertTimer.Stop()
	}
	m.mu.Unlock()

	m.bus.Unsubscribe(m.subID)
	close(m.stop)
	<-m.done

	m.logger.Info("delivery manager stopped")
}

// InsertionInProgress reports whether a batch insertion landed within
// the debounce window. Cooperating edit-tracking logic reads this to
// avoid treating the batch as a user-driven edit.
func (m *Manager) InsertionInProgress() bool {
	return m.inserting.Load()
}

// onBroadcast filters channel A events down to this tab.
func (m *Manager) onBroadcast(e bus.Event) {
	evt, ok := e.(bus.AgentsSelectedEvent)
	if !ok || evt.TabID != m.canvas.TabID() {
		return
	}
	m.broadcast.Offer(Batch{DeliveryID: evt.DeliveryID, TabID: evt.TabID, Agents: evt.Agents})
}

func (m *Manager) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()
	polls := 0
	polling := true

	for {
		select {
		case <-m.broadcast.notify:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			for {
				batch, ok := m.broadcast.TryReceive(ctx)
				if !ok {
					break
				}
				m.accept(ctx, batch, channelBroadcast)
			}
			cancel()

		case <-ticker.C:
			if !polling {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			m.inspectFallback(ctx)
			cancel()

			polls++
			if polls >= m.config.MaxPolls {
				// The repeating inspection ends here; the broadcast
				// subscription stays live for the instance's lifetime.
				ticker.Stop()
				polling = false
				m.logger.Debug("fallback polling finished", zap.Int("polls", polls))
			}

		case <-m.stop:
			return
		}
	}
}

func (m *Manager) inspectFallback(ctx context.Context) {
	if batch, ok := m.fallback.TryReceive(ctx); ok {
		m.accept(ctx, batch, channelFallback)
	}
}

// accept applies the shared acceptance effect: place the batch with the
// vertical strategy against a fresh node snapshot, raise the insertion
// flag, schedule the draft update, and announce the modification.
func (m *Manager) accept(ctx context.Context, batch Batch, channel string) {
	if len(batch.Agents) == 0 {
		return
	}

	// The same selection travels on both channels; whichever copy lands
	// second is skipped.
	if batch.DeliveryID != "" && !m.firstDelivery(batch.DeliveryID) {
		m.logger.Debug("skipping duplicate delivery",
			zap.String("channel", channel),
			zap.String("delivery_id", batch.DeliveryID),
		)
		return
	}

	// The fallback channel counts its verdict at inspection time; the
	// broadcast counts here, past the empty and duplicate gates, so the
	// accepted series only covers batches that actually landed.
	if channel == channelBroadcast {
		m.metrics.RecordDelivery(channelBroadcast, VerdictAccepted.String())
	}

	var updated []types.CanvasNode
	m.canvas.SetNodes(func(current []types.CanvasNode) []types.CanvasNode {
		positions := layout.ComputePositions(current, len(batch.Agents), layout.StrategyVertical, m.config.Layout)
		next := append([]types.CanvasNode(nil), current...)
		for i, item := range batch.Agents {
			next = append(next, types.NewCanvasNode(uuid.NewString(), item, positions[i]))
		}
		updated = next
		return next
	})

	m.markInserting()
	m.drafts.ScheduleUpdate(m.canvas.TabID(), updated, m.canvas.Identity(), true)
	m.bus.Publish(bus.CanvasModifiedEvent{
		TabID:      m.canvas.TabID(),
		NodesAdded: len(batch.Agents),
		At:         time.Now(),
	})
	m.metrics.RecordNodesInserted(len(batch.Agents))

	// A selection delivered on the broadcast also wrote a durable copy;
	// drop it before a later poll inserts the batch a second time.
	if channel == channelBroadcast {
		m.fallback.discardOwn(ctx, batch.DeliveryID)
	}

	m.logger.Info("accepted delivery",
		zap.String("channel", channel),
		zap.Int("items", len(batch.Agents)),
	)
}

// firstDelivery records a delivery id and reports whether this is its
// first sighting. Entries older than the record TTL are pruned; past
// that point the fallback copy can no longer be accepted anyway.
func (m *Manager) firstDelivery(id string) bool {
	now := time.Now()

	m.seenMu.Lock()
	defer m.seenMu.Unlock()
	for k, at := range m.seen {
		if now.Sub(at) >= m.config.RecordTTL {
			delete(m.seen, k)
		}
	}
	if _, dup := m.seen[id]; dup {
		return false
	}
	m.seen[id] = now
	return true
}

// markInserting raises the insertion flag and arms (or re-arms) its
// reset timer. The flag is owned by this manager alone.
func (m *Manager) markInserting() {
	m.inserting.Store(true)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		m.inserting.Store(false)
		return
	}
	if m.insertTimer != nil {
		m.insertTimer.Stop()
	}
	m.insertTimer = time.AfterFunc(m.config.InsertionDebounce, func() {
		m.inserting.Store(false)
	})
}

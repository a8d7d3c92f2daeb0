// Package canvasflow provides a top-level convenience entry point for
// running an in-process canvas editing session with minimal
// boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/canvasflow"
//
//	s, err := canvasflow.New(canvasflow.WithLogger(logger))
//	tab, err := s.OpenTab(ctx)
//	s.Select(tab.TabID(), agents)
//
// A Session wires the broadcast bus, the durable key-value store, the
// draft synchronizer, the tab manager, and one delivery manager per
// open tab. Embedders that need the HTTP gateway use cmd/canvasflow
// or the internal/server package directly.
package canvasflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/canvasflow/bus"
	"github.com/BaSui01/canvasflow/delivery"
	"github.com/BaSui01/canvasflow/draft"
	"github.com/BaSui01/canvasflow/internal/metrics"
	"github.com/BaSui01/canvasflow/store"
	"github.com/BaSui01/canvasflow/tabs"
	"github.com/BaSui01/canvasflow/types"
)

// Option configures the session created by [New].
type Option func(*options)

type options struct {
	logger     *zap.Logger
	kv         store.KeyValueStore
	draftStore draft.Store
	collector  *metrics.Collector
	delivery   delivery.Config
	confirm    tabs.ConfirmFunc
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStore sets the shared key-value store. Defaults to an in-memory
// store, which is sufficient when every canvas lives in this process.
func WithStore(kv store.KeyValueStore) Option {
	return func(o *options) { o.kv = kv }
}

// WithDraftStore sets the draft persistence backend.
func WithDraftStore(ds draft.Store) Option {
	return func(o *options) { o.draftStore = ds }
}

// WithMetrics sets the prometheus collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithDeliveryConfig overrides the delivery manager tuning.
func WithDeliveryConfig(cfg delivery.Config) Option {
	return func(o *options) { o.delivery = cfg }
}

// WithCloseConfirm sets the hook consulted before closing a tab with
// unsaved changes.
func WithCloseConfirm(fn tabs.ConfirmFunc) Option {
	return func(o *options) { o.confirm = fn }
}

// Session is a running editing session: one bus, one store, one draft
// map, and a delivery manager per open tab.
type Session struct {
	bus    bus.EventBus
	kv     store.KeyValueStore
	drafts *draft.Synchronizer
	tabs   *tabs.Manager
	config delivery.Config
	logger *zap.Logger
	coll   *metrics.Collector

	mu       sync.Mutex
	managers map[string]*delivery.Manager
	closed   bool
}

// New creates and hydrates a session.
func New(opts ...Option) (*Session, error) {
	o := &options{
		delivery: delivery.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.kv == nil {
		o.kv = store.NewMemoryStore()
	}
	if o.draftStore == nil {
		o.draftStore = draft.NewKVStore(o.kv)
	}

	s := &Session{
		bus:      bus.NewEventBus(o.logger),
		kv:       o.kv,
		config:   o.delivery,
		logger:   o.logger,
		coll:     o.collector,
		managers: make(map[string]*delivery.Manager),
	}
	s.drafts = draft.NewSynchronizer(o.draftStore, o.collector, o.logger)
	s.tabs = tabs.NewManager(s.drafts, o.confirm, o.logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.drafts.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to hydrate drafts: %w", err)
	}

	return s, nil
}

// Bus exposes the session's broadcast bus.
func (s *Session) Bus() bus.EventBus { return s.bus }

// Drafts exposes the draft synchronizer.
func (s *Session) Drafts() *draft.Synchronizer { return s.drafts }

// Tabs exposes the tab manager.
func (s *Session) Tabs() *tabs.Manager { return s.tabs }

// OpenTab creates a new tab, mounts its canvas, and starts its delivery
// manager.
func (s *Session) OpenTab(ctx context.Context) (*tabs.Tab, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, types.NewError(types.ErrSessionClosed, "session is closed")
	}
	s.mu.Unlock()

	tab := s.tabs.CreateTab()
	if err := s.tabs.MarkReady(tab.TabID()); err != nil {
		return nil, err
	}
	if err := s.mountDelivery(ctx, tab); err != nil {
		return nil, err
	}
	return tab, nil
}

// CloseTab closes a tab and tears its delivery manager down. A tab
// synthesized after closing the last one gets its own manager.
func (s *Session) CloseTab(ctx context.Context, tabID string) (bool, error) {
	s.mu.Lock()
	mgr := s.managers[tabID]
	s.mu.Unlock()

	closed, err := s.tabs.CloseTab(tabID)
	if err != nil || !closed {
		return closed, err
	}

	if mgr != nil {
		mgr.Stop()
		s.mu.Lock()
		delete(s.managers, tabID)
		s.mu.Unlock()
	}

	// The manager for a synthesized replacement tab.
	for _, id := range s.tabs.Tabs() {
		s.mu.Lock()
		_, known := s.managers[id]
		s.mu.Unlock()
		if known {
			continue
		}
		if tab, ok := s.tabs.Tab(id); ok {
			if err := s.tabs.MarkReady(id); err != nil {
				return true, err
			}
			if err := s.mountDelivery(ctx, tab); err != nil {
				return true, err
			}
		}
	}
	return true, nil
}

// Select delivers a catalog selection to a tab over both channels, the
// way the catalog view does: a broadcast for mounted canvases and a
// durable record covering one that has not mounted yet.
func (s *Session) Select(ctx context.Context, tabID string, agents []types.AgentItem) error {
	if tabID == "" {
		return fmt.Errorf("tabID is required")
	}
	if len(agents) == 0 {
		return fmt.Errorf("agents must not be empty")
	}

	// The durable record goes down first: a mounted canvas that accepts
	// the broadcast discards its copy, and writing it afterwards would
	// leave a window where the discard finds nothing.
	now := time.Now()
	rec := types.NewPendingDeliveryRecord(tabID, agents, now)
	raw, err := rec.Encode()
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, types.PendingAgentsKey, raw); err != nil {
		return fmt.Errorf("failed to write pending record: %w", err)
	}

	s.bus.Publish(bus.AgentsSelectedEvent{
		DeliveryID: rec.DeliveryID,
		TabID:      tabID,
		Agents:     agents,
		At:         now,
	})
	return nil
}

// Close stops every delivery manager, the synchronizer, and the bus.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	managers := make([]*delivery.Manager, 0, len(s.managers))
	for _, m := range s.managers {
		managers = append(managers, m)
	}
	s.managers = map[string]*delivery.Manager{}
	s.mu.Unlock()

	for _, m := range managers {
		m.Stop()
	}
	s.drafts.Stop()
	s.bus.Stop()
}

func (s *Session) mountDelivery(ctx context.Context, tab *tabs.Tab) error {
	mgr := delivery.NewManager(tab, s.bus, s.kv, s.drafts, s.config, s.coll, s.logger)
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.managers[tab.TabID()] = mgr
	s.mu.Unlock()
	return nil
}

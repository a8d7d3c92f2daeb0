package draft

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/canvasflow/internal/metrics"
	"github.com/BaSui01/canvasflow/types"
)

// updateJob carries one scheduled draft update through the dispatcher.
type updateJob struct {
	tabID    string
	nodes    []types.CanvasNode
	identity types.WorkflowIdentity
	unsaved  bool
}

// Synchronizer owns the per-tab draft map. The map is mutated only by
// the dispatcher goroutine applying scheduled updates and by the tab
// lifecycle calls (CreateDraft/RemoveDraft); callers never write it
// directly.
type Synchronizer struct {
	mu     sync.RWMutex
	drafts map[string]types.TabDraft

	store   Store
	metrics *metrics.Collector
	logger  *zap.Logger

	jobs     chan updateJob
	done     chan struct{}
	stopOnce sync.Once
}

// NewSynchronizer creates a synchronizer and starts its dispatcher.
// metrics may be nil; a nil logger falls back to a nop.
func NewSynchronizer(store Store, collector *metrics.Collector, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synchronizer{
		drafts:  make(map[string]types.TabDraft),
		store:   store,
		metrics: collector,
		logger:  logger.With(zap.String("component", "draft_synchronizer")),
		jobs:    make(chan updateJob, 64),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Load hydrates the in-memory draft map from the durable store.
// Call once at startup, before any tab is created.
func (s *Synchronizer) Load(ctx context.Context) error {
	drafts, err := s.store.LoadDrafts(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.drafts = drafts
	s.mu.Unlock()
	s.logger.Info("drafts loaded", zap.Int("count", len(drafts)))
	return nil
}

// ScheduleUpdate defers a draft update to the dispatcher. It returns
// immediately; the triggering canvas mutation is never blocked on
// persistence. Updates for the same tab apply in the order scheduled.
func (s *Synchronizer) ScheduleUpdate(tabID string, nodes []types.CanvasNode, identity types.WorkflowIdentity, unsaved bool) {
	job := updateJob{
		tabID:    tabID,
		nodes:    append([]types.CanvasNode(nil), nodes...),
		identity: identity,
		unsaved:  unsaved,
	}
	select {
	case s.jobs <- job:
	case <-s.done:
	}
}

// CreateDraft registers a fresh draft for a new tab and persists the map.
func (s *Synchronizer) CreateDraft(tabID string, draft types.TabDraft) {
	draft.Normalize()
	s.mu.Lock()
	s.drafts[tabID] = draft
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
}

// RemoveDraft deletes a closed tab's draft and persists the map. The
// removed draft is not tombstoned; it is simply gone.
func (s *Synchronizer) RemoveDraft(tabID string) {
	s.mu.Lock()
	delete(s.drafts, tabID)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
}

// Draft returns the current draft for a tab.
func (s *Synchronizer) Draft(tabID string) (types.TabDraft, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drafts[tabID]
	if !ok {
		return types.TabDraft{}, false
	}
	return d.Clone(), true
}

// Drafts returns a copy of the full draft map.
func (s *Synchronizer) Drafts() map[string]types.TabDraft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Stop shuts down the dispatcher. In-flight persistence finishes;
// updates scheduled after Stop are dropped.
func (s *Synchronizer) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Synchronizer) run() {
	for {
		select {
		case job := <-s.jobs:
			s.apply(job)
		case <-s.done:
			return
		}
	}
}

// apply builds the updated draft from the current one. Edges carry over
// from the existing draft; a missing draft contributes an empty edge
// slice, never nil.
func (s *Synchronizer) apply(job updateJob) {
	s.mu.Lock()
	current := s.drafts[job.tabID]

	edges := current.Edges
	if edges == nil {
		edges = []types.Edge{}
	}

	updated := types.TabDraft{
		Nodes:               job.nodes,
		Edges:               edges,
		WorkflowID:          job.identity.ID,
		WorkflowName:        job.identity.Name,
		WorkflowDescription: job.identity.Description,
		IsUnsaved:           job.unsaved,
	}
	updated.Normalize()

	s.drafts[job.tabID] = updated
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	start := time.Now()
	s.persist(snapshot)
	s.metrics.RecordDraftUpdate(time.Since(start))
}

// persist writes the full map, best effort. Failures are logged, never
// propagated: the in-memory map remains the source of truth.
func (s *Synchronizer) persist(snapshot map[string]types.TabDraft) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.SaveDrafts(ctx, snapshot); err != nil {
		s.logger.Error("failed to persist drafts", zap.Error(err))
	}
}

// snapshotLocked copies the draft map; callers must hold mu.
func (s *Synchronizer) snapshotLocked() map[string]types.TabDraft {
	out := make(map[string]types.TabDraft, len(s.drafts))
	for id, d := range s.drafts {
		out[id] = d.Clone()
	}
	return out
}

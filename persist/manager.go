package persist

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/viceroymiami/chatgpt-media-flow/flow"
)

// indicatorTTL is how long the restored indicator stays up before
// auto-dismissing.
const indicatorTTL = 10 * time.Second

// RestoreIndicator is raised after an automatic restore so the user can
// undo or accept it.
type RestoreIndicator struct {
	WorkflowName string
	RestoreTime  string
}

// preRestoreState captures whatever was in memory before a restore, for
// potential undo.
type preRestoreState struct {
	name  string
	nodes []flow.Node
	edges []flow.Edge
}

// Manager owns the autosave/restore lifecycle for one board. Restore
// runs exactly once, before autosave is armed; autosave then debounces
// board changes and writes superseding snapshots keyed by board name.
// All storage failures are logged and swallowed — persistence is
// best-effort and must never take down the editing session.
type Manager struct {
	store  Store
	board  *flow.Board
	logger *zap.Logger

	debounce time.Duration
	now      func() time.Time

	mu           sync.Mutex
	restoreDone  bool
	indicator    *RestoreIndicator
	preRestore   *preRestoreState
	indicatorTmr *time.Timer
	saveTmr      *time.Timer
	closed       bool
}

// NewManager wires a persistence manager to a board and arms the change
// hook. Call RestoreLatest before editing begins; autosave stays off
// until the restore pass has completed.
func NewManager(store Store, board *flow.Board, debounce time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = time.Second
	}
	m := &Manager{
		store:    store,
		board:    board,
		logger:   logger.With(zap.String("component", "persistence")),
		debounce: debounce,
		now:      time.Now,
	}
	board.SetOnChange(m.onBoardChange)
	return m
}

// SetClock overrides the time source stamped into saved snapshots.
// Tests and embedders with their own notion of time inject it here.
func (m *Manager) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// RestoreLatest scans all stored snapshots and applies the one with the
// latest save time among those with at least one node. Runs exactly
// once; later calls are no-ops. Returns the raised indicator, or nil
// when nothing was restored.
func (m *Manager) RestoreLatest(ctx context.Context) *RestoreIndicator {
	m.mu.Lock()
	if m.restoreDone {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.restoreDone = true
		m.mu.Unlock()
	}()

	keys, err := m.store.List(ctx, KeyPrefix)
	if err != nil {
		m.logger.Warn("restore scan failed", zap.Error(err))
		return nil
	}

	var best *Snapshot
	for _, key := range keys {
		data, err := m.store.Get(ctx, key)
		if err != nil {
			m.logger.Warn("failed to read saved workflow", zap.String("key", key), zap.Error(err))
			continue
		}
		snap, err := parseSnapshot(data)
		if err != nil {
			m.logger.Warn("failed to parse saved workflow", zap.String("key", key), zap.Error(err))
			continue
		}
		if len(snap.Nodes) == 0 {
			continue
		}
		if best == nil || snap.savedAt().After(best.savedAt()) {
			s := snap
			best = &s
		}
	}
	if best == nil {
		m.logger.Info("no saved workflow to restore")
		return nil
	}

	m.mu.Lock()
	m.preRestore = &preRestoreState{
		name:  m.board.Name(),
		nodes: m.board.Nodes(),
		edges: m.board.Edges(),
	}
	m.mu.Unlock()

	m.board.Replace(best.DisplayName(), best.Nodes, best.Edges)
	if best.Viewport != nil {
		m.board.SetViewport(*best.Viewport)
	}

	ind := &RestoreIndicator{WorkflowName: best.DisplayName(), RestoreTime: best.LastSaved}

	m.mu.Lock()
	m.indicator = ind
	m.indicatorTmr = time.AfterFunc(indicatorTTL, m.Dismiss)
	m.mu.Unlock()

	m.logger.Info("restored saved workflow",
		zap.String("name", ind.WorkflowName),
		zap.String("last_saved", ind.RestoreTime),
	)
	return ind
}

// Indicator returns the pending restore indicator, if any.
func (m *Manager) Indicator() *RestoreIndicator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indicator
}

// Dismiss keeps the restored state and clears the indicator, re-arming
// autosave.
func (m *Manager) Dismiss() {
	m.mu.Lock()
	m.clearIndicatorLocked()
	m.mu.Unlock()
}

// Undo reverts the board to the state captured before the restore and
// re-arms autosave.
func (m *Manager) Undo() {
	m.mu.Lock()
	prev := m.preRestore
	m.clearIndicatorLocked()
	m.mu.Unlock()

	if prev != nil {
		m.board.Replace(prev.name, prev.nodes, prev.edges)
		m.logger.Info("restoration undone")
	}
}

func (m *Manager) clearIndicatorLocked() {
	if m.indicatorTmr != nil {
		m.indicatorTmr.Stop()
		m.indicatorTmr = nil
	}
	m.indicator = nil
	m.preRestore = nil
}

// onBoardChange is the board's dirty hook: the first change after a
// restore implicitly accepts it (clearing the indicator exactly once),
// then the change is debounced into a save. Trailing-edge debounce: the
// timer re-arms on every qualifying change.
func (m *Manager) onBoardChange() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.restoreDone || m.closed {
		return
	}
	if m.indicator != nil {
		m.clearIndicatorLocked()
		m.logger.Debug("change after restore, indicator dismissed")
	}

	if m.saveTmr != nil {
		m.saveTmr.Stop()
	}
	m.saveTmr = time.AfterFunc(m.debounce, m.save)
}

// save serializes the current board and writes it under its name key.
func (m *Manager) save() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m.mu.Lock()
	now := m.now
	m.mu.Unlock()

	snap := TakeSnapshot(m.board, now())
	data, err := snap.Marshal()
	if err != nil {
		m.logger.Warn("failed to serialize workflow", zap.Error(err))
		return
	}
	key := SnapshotKey(m.board.Name())
	if err := m.store.Set(ctx, key, data); err != nil {
		m.logger.Warn("failed to save workflow", zap.String("key", key), zap.Error(err))
		return
	}
	m.logger.Debug("workflow auto-saved", zap.String("key", key))
}

// Flush forces any pending debounced save to run now.
func (m *Manager) Flush() {
	m.mu.Lock()
	pending := m.saveTmr != nil && m.saveTmr.Stop()
	m.saveTmr = nil
	m.mu.Unlock()
	if pending {
		m.save()
	}
}

// Rename changes the board name and migrates the stored snapshot from
// the old key to the new one. Migration is best-effort; a storage
// failure leaves the rename in place.
func (m *Manager) Rename(ctx context.Context, newName string) {
	oldName := m.board.Name()
	m.board.Rename(newName)

	if oldName == "" || oldName == newName || oldName == flow.DefaultBoardName {
		return
	}
	oldKey := SnapshotKey(oldName)
	data, err := m.store.Get(ctx, oldKey)
	if err != nil {
		if err != ErrNotFound {
			m.logger.Warn("failed to migrate workflow key", zap.String("key", oldKey), zap.Error(err))
		}
		return
	}
	if err := m.store.Set(ctx, SnapshotKey(newName), data); err != nil {
		m.logger.Warn("failed to migrate workflow key", zap.String("key", oldKey), zap.Error(err))
		return
	}
	if err := m.store.Delete(ctx, oldKey); err != nil {
		m.logger.Warn("failed to remove old workflow key", zap.String("key", oldKey), zap.Error(err))
	}
	m.logger.Info("migrated workflow", zap.String("from", oldName), zap.String("to", newName))
}

// SavedWorkflow summarizes one stored snapshot for listing.
type SavedWorkflow struct {
	Key       string
	Name      string
	LastSaved string
	NodeCount int
	EdgeCount int
	Snapshot  Snapshot
}

// SavedWorkflows lists all stored snapshots with at least one node,
// newest first. Corrupt entries are skipped.
func (m *Manager) SavedWorkflows(ctx context.Context) []SavedWorkflow {
	keys, err := m.store.List(ctx, KeyPrefix)
	if err != nil {
		m.logger.Warn("failed to list saved workflows", zap.Error(err))
		return nil
	}

	var saved []SavedWorkflow
	for _, key := range keys {
		data, err := m.store.Get(ctx, key)
		if err != nil {
			continue
		}
		snap, err := parseSnapshot(data)
		if err != nil || len(snap.Nodes) == 0 {
			continue
		}
		saved = append(saved, SavedWorkflow{
			Key:       key,
			Name:      snap.DisplayName(),
			LastSaved: snap.LastSaved,
			NodeCount: len(snap.Nodes),
			EdgeCount: len(snap.Edges),
			Snapshot:  snap,
		})
	}
	for i := 0; i < len(saved); i++ {
		for j := i + 1; j < len(saved); j++ {
			if saved[j].Snapshot.savedAt().After(saved[i].Snapshot.savedAt()) {
				saved[i], saved[j] = saved[j], saved[i]
			}
		}
	}
	return saved
}

// DeleteSaved removes a stored snapshot by key.
func (m *Manager) DeleteSaved(ctx context.Context, key string) error {
	if err := m.store.Delete(ctx, key); err != nil {
		m.logger.Warn("failed to delete saved workflow", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Load applies a stored snapshot to the board, replacing its content.
func (m *Manager) Load(snap Snapshot) {
	m.board.Replace(snap.DisplayName(), snap.Nodes, snap.Edges)
	if snap.Viewport != nil {
		m.board.SetViewport(*snap.Viewport)
	}
}

// Close stops timers and detaches from the board.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	if m.saveTmr != nil {
		m.saveTmr.Stop()
		m.saveTmr = nil
	}
	m.clearIndicatorLocked()
	m.mu.Unlock()
}

package flow

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/viceroymiami/chatgpt-media-flow/catalog"
)

// DefaultBoardName is used whenever a board has no explicit name.
const DefaultBoardName = "Untitled Flow"

// connectionErrorTTL is how long a rejected-connection diagnostic stays
// visible near the target handle.
const connectionErrorTTL = 3 * time.Second

// Board holds the canonical node and edge collections and applies
// structural mutations atomically. Every mutation preserves the edge
// invariants and fires the change hook used by the autosave debounce.
type Board struct {
	mu       sync.RWMutex
	name     string
	nodes    []Node
	edges    []Edge
	viewport Viewport

	onChange func()
	logger   *zap.Logger

	connErrMu  sync.Mutex
	connErrors map[string]string
	// after schedules the expiry of a transient connection error;
	// injectable so tests do not sleep.
	after func(d time.Duration, f func()) *time.Timer
}

// NewBoard creates an empty board.
func NewBoard(logger *zap.Logger) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Board{
		viewport:   Viewport{Zoom: 1},
		logger:     logger.With(zap.String("component", "board")),
		connErrors: make(map[string]string),
		after:      time.AfterFunc,
	}
}

// SetOnChange registers the hook fired after every structural mutation
// to nodes, edges, or the board name.
func (b *Board) SetOnChange(fn func()) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Name returns the board name, or DefaultBoardName when unset.
func (b *Board) Name() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.name == "" {
		return DefaultBoardName
	}
	return b.name
}

// Rename sets the board name.
func (b *Board) Rename(name string) {
	b.mu.Lock()
	b.name = name
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Viewport returns the current canvas viewport.
func (b *Board) Viewport() Viewport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.viewport
}

// SetViewport updates the canvas viewport. Viewport moves are not
// structural changes and do not fire the change hook.
func (b *Board) SetViewport(v Viewport) {
	b.mu.Lock()
	b.viewport = v
	b.mu.Unlock()
}

// Nodes returns a copy of the node collection in stored order.
func (b *Board) Nodes() []Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Node, len(b.nodes))
	copy(out, b.nodes)
	return out
}

// Edges returns a copy of the edge collection.
func (b *Board) Edges() []Edge {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Edge, len(b.edges))
	copy(out, b.edges)
	return out
}

// Node returns the node with the given id.
func (b *Board) Node(id string) (Node, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, n := range b.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// AddNode appends a new node of the given type with per-type default
// data and returns it.
func (b *Board) AddNode(typ NodeType, pos Position) Node {
	n := Node{ID: newID(), Type: typ, Position: pos, Data: defaultData(typ)}
	b.mu.Lock()
	b.nodes = append(b.nodes, n)
	fn := b.onChange
	b.mu.Unlock()

	b.logger.Debug("node added", zap.String("node_id", n.ID), zap.String("type", string(typ)))
	if fn != nil {
		fn()
	}
	return n
}

// AddModelNode appends a model node preconfigured from the catalog:
// first declared aspect ratio, voice, and sync mode become the node's
// defaults.
func (b *Board) AddModelNode(modelID, displayName string, pos Position) Node {
	n := Node{
		ID:       newID(),
		Type:     NodeModel,
		Position: pos,
		Data: NodeData{
			Label:       "Model",
			Name:        displayName,
			Model:       modelID,
			AspectRatio: catalog.DefaultAspectRatio(modelID),
			OutputCount: 1,
			VoiceID:     catalog.DefaultVoice(modelID),
			SyncMode:    catalog.DefaultSyncMode(modelID),
		},
	}
	b.mu.Lock()
	b.nodes = append(b.nodes, n)
	fn := b.onChange
	b.mu.Unlock()

	b.logger.Debug("model node added", zap.String("node_id", n.ID), zap.String("model", modelID))
	if fn != nil {
		fn()
	}
	return n
}

// DeleteNode removes a node and cascade-deletes every incident edge.
func (b *Board) DeleteNode(id string) {
	b.mu.Lock()
	nodes := b.nodes[:0]
	for _, n := range b.nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	b.nodes = nodes

	edges := b.edges[:0]
	for _, e := range b.edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	b.edges = edges
	fn := b.onChange
	b.mu.Unlock()

	b.logger.Debug("node deleted", zap.String("node_id", id))
	if fn != nil {
		fn()
	}
}

// DeleteEdge removes an edge by id.
func (b *Board) DeleteEdge(id string) {
	b.mu.Lock()
	edges := b.edges[:0]
	for _, e := range b.edges {
		if e.ID != id {
			edges = append(edges, e)
		}
	}
	b.edges = edges
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Connect validates and commits a new edge. A valid connection to an
// already-occupied target handle silently replaces the prior edge. An
// invalid connection records a transient diagnostic keyed by
// "<target>-<targetHandle>" that clears itself after three seconds.
func (b *Board) Connect(source, sourceHandle, target, targetHandle string) (Edge, error) {
	srcNode, okS := b.Node(source)
	dstNode, okT := b.Node(target)
	if !okS || !okT {
		return Edge{}, ErrUnknownNode
	}

	if err := CheckConnection(srcNode, sourceHandle, dstNode, targetHandle); err != nil {
		key := target + "-" + targetHandle
		b.connErrMu.Lock()
		b.connErrors[key] = err.Error()
		b.connErrMu.Unlock()
		b.after(connectionErrorTTL, func() {
			b.connErrMu.Lock()
			delete(b.connErrors, key)
			b.connErrMu.Unlock()
		})
		b.logger.Debug("connection rejected",
			zap.String("source", source),
			zap.String("target", target),
			zap.String("target_handle", targetHandle),
			zap.Error(err),
		)
		return Edge{}, err
	}

	// Accepted: clear a stale diagnostic for this handle, if any.
	b.connErrMu.Lock()
	delete(b.connErrors, target+"-"+targetHandle)
	b.connErrMu.Unlock()

	edge := Edge{
		ID:           newID(),
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	}

	b.mu.Lock()
	edges := b.edges[:0]
	for _, e := range b.edges {
		if !(e.Target == target && e.TargetHandle == targetHandle) {
			edges = append(edges, e)
		}
	}
	b.edges = append(edges, edge)
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn()
	}
	return edge, nil
}

// ConnectionErrors returns the transient rejected-connection
// diagnostics keyed by "<target>-<targetHandle>".
func (b *Board) ConnectionErrors() map[string]string {
	b.connErrMu.Lock()
	defer b.connErrMu.Unlock()
	out := make(map[string]string, len(b.connErrors))
	for k, v := range b.connErrors {
		out[k] = v
	}
	return out
}

// UpdateNodeData applies fn to the node's data under the board lock.
// Concurrent slot completions for the same node merge through here, so
// updates are read-modify-write against current state rather than blind
// overwrites.
func (b *Board) UpdateNodeData(id string, fn func(*NodeData)) bool {
	b.mu.Lock()
	var found bool
	for i := range b.nodes {
		if b.nodes[i].ID == id {
			fn(&b.nodes[i].Data)
			found = true
			break
		}
	}
	hook := b.onChange
	b.mu.Unlock()

	if found && hook != nil {
		hook()
	}
	return found
}

// SetGeometry updates an organization box's size.
func (b *Board) SetGeometry(id string, width, height float64) bool {
	return b.UpdateNodeData(id, func(d *NodeData) {
		d.Width = width
		d.Height = height
	})
}

// ClearResults drops all execution-result fields from every node.
// Fired at the start of an execution pass; not a structural change, so
// the change hook does not run.
func (b *Board) ClearResults() {
	b.mu.Lock()
	for i := range b.nodes {
		b.nodes[i].Data.clearResults()
	}
	b.mu.Unlock()
}

// Replace swaps the whole board content. Used by restore and import;
// deliberate that the change hook does NOT fire — arming autosave after
// a restore is the persistence layer's decision.
func (b *Board) Replace(name string, nodes []Node, edges []Edge) {
	b.mu.Lock()
	b.name = name
	b.nodes = make([]Node, len(nodes))
	copy(b.nodes, nodes)
	b.edges = make([]Edge, len(edges))
	copy(b.edges, edges)
	b.mu.Unlock()
	b.logger.Info("board replaced",
		zap.String("name", name),
		zap.Int("nodes", len(nodes)),
		zap.Int("edges", len(edges)),
	)
}

// ReplaceDirty swaps the whole board content like Replace but fires
// the change hook: an imported workflow is a user edit, so it dismisses
// a pending restore indicator and schedules an autosave.
func (b *Board) ReplaceDirty(name string, nodes []Node, edges []Edge) {
	b.Replace(name, nodes, edges)
	b.mu.RLock()
	fn := b.onChange
	b.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Clear empties the board.
func (b *Board) Clear() {
	b.mu.Lock()
	b.nodes = nil
	b.edges = nil
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

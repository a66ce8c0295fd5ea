// Package mediaflow is a node-based workflow editor for generative
// media models. Text and image inputs feed model nodes over typed
// connections; execution resolves the dependency graph, fans each model
// node out across its requested output count, and records results and
// classified failures. Workflows autosave, restore across sessions, and
// round-trip through shareable JSON files.
package mediaflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/viceroymiami/chatgpt-media-flow/config"
	"github.com/viceroymiami/chatgpt-media-flow/engine"
	"github.com/viceroymiami/chatgpt-media-flow/flow"
	"github.com/viceroymiami/chatgpt-media-flow/persist"
	"github.com/viceroymiami/chatgpt-media-flow/replicate"
)

// Editor bundles a board with its execution engine and persistence
// manager. It is the embedding surface for applications; the underlying
// components remain reachable for anything the facade does not cover.
type Editor struct {
	board   *flow.Board
	engine  *engine.Engine
	history *engine.History
	errors  *engine.Recorder
	manager *persist.Manager
	store   persist.Store
	logger  *zap.Logger
}

// Option customizes editor construction.
type Option func(*options)

type options struct {
	logger *zap.Logger
	client engine.Client
	store  persist.Store
	clock  func() time.Time
}

// WithLogger sets the root logger; components derive scoped loggers
// from it.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClient overrides the model client, e.g. for tests.
func WithClient(c engine.Client) Option {
	return func(o *options) { o.client = c }
}

// WithStore overrides the persistence backend built from the config.
func WithStore(s persist.Store) Option {
	return func(o *options) { o.store = s }
}

// WithClock overrides the time source stamped into saved snapshots.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// New builds an editor from configuration. The board starts empty;
// call RestoreLatest to pick up a previous session.
func New(cfg config.Config, opts ...Option) (*Editor, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	store := o.store
	if store == nil {
		var err error
		store, err = persist.NewStore(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
	}

	client := o.client
	if client == nil {
		client = replicate.NewClient(cfg.Replicate, o.logger)
	}

	board := flow.NewBoard(o.logger)
	history := engine.NewHistory()
	recorder := engine.NewRecorder(o.logger)
	eng := engine.New(board, client, history, recorder, o.logger)
	manager := persist.NewManager(store, board, cfg.Store.Debounce, o.logger)
	if o.clock != nil {
		manager.SetClock(o.clock)
	}

	return &Editor{
		board:   board,
		engine:  eng,
		history: history,
		errors:  recorder,
		manager: manager,
		store:   store,
		logger:  o.logger,
	}, nil
}

// Board exposes the underlying graph for direct editing.
func (e *Editor) Board() *flow.Board { return e.board }

// History exposes the generation history.
func (e *Editor) History() *engine.History { return e.history }

// Errors exposes the classified error recorder.
func (e *Editor) Errors() *engine.Recorder { return e.errors }

// Manager exposes the persistence manager for restore/undo control.
func (e *Editor) Manager() *persist.Manager { return e.manager }

// ExecuteFlow runs the whole graph in dependency order.
func (e *Editor) ExecuteFlow(ctx context.Context) error {
	return e.engine.Execute(ctx)
}

// RestoreLatest applies the most recent saved workflow, if any.
func (e *Editor) RestoreLatest(ctx context.Context) *persist.RestoreIndicator {
	return e.manager.RestoreLatest(ctx)
}

// Export serializes the current workflow as shareable JSON.
func (e *Editor) Export() ([]byte, error) {
	return persist.Export(e.board)
}

// Import replaces the current workflow with a parsed flow document.
func (e *Editor) Import(data []byte) error {
	return persist.Import(e.board, data)
}

// Close flushes pending saves and releases the store.
func (e *Editor) Close() error {
	e.manager.Flush()
	e.manager.Close()
	return e.store.Close()
}

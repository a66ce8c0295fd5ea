package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/viceroymiami/chatgpt-media-flow/catalog"
	"github.com/viceroymiami/chatgpt-media-flow/flow"
)

// ErrAlreadyExecuting is returned when Execute is called while a pass
// is still in flight. The engine runs at most one pass at a time.
var ErrAlreadyExecuting = errors.New("an execution pass is already in flight")

// maxOutputCount bounds the parallel slots a single node may request.
const maxOutputCount = 8

// Engine drives execution passes over a board. All collaborators are
// injected; the engine holds no ambient state.
type Engine struct {
	board   *flow.Board
	client  Client
	history *History
	errors  *Recorder
	logger  *zap.Logger

	mu        sync.Mutex
	executing bool
}

// New creates an engine for the given board and inference client.
// History and error recorders may be shared with the rest of the
// application; nil recorders get private instances.
func New(board *flow.Board, client Client, history *History, recorder *Recorder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if history == nil {
		history = NewHistory()
	}
	if recorder == nil {
		recorder = NewRecorder(logger)
	}
	return &Engine{
		board:   board,
		client:  client,
		history: history,
		errors:  recorder,
		logger:  logger.With(zap.String("component", "engine")),
	}
}

// History returns the engine's run history recorder.
func (e *Engine) History() *History { return e.history }

// Errors returns the engine's error recorder.
func (e *Engine) Errors() *Recorder { return e.errors }

// Executing reports whether a pass is currently in flight.
func (e *Engine) Executing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executing
}

// Execute runs one full pass: clears previous results, schedules the
// graph, and processes every node in dependency order. Slot calls for
// one node run concurrently; nodes run strictly sequentially because a
// later node may consume an earlier node's aggregated output.
func (e *Engine) Execute(ctx context.Context) error {
	e.mu.Lock()
	if e.executing {
		e.mu.Unlock()
		return ErrAlreadyExecuting
	}
	e.executing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.executing = false
		e.mu.Unlock()
	}()

	e.board.ClearResults()

	nodes := e.board.Nodes()
	edges := e.board.Edges()

	order, err := flow.Schedule(nodes, edges)
	if err != nil {
		e.errors.Record(err, "")
		return err
	}

	e.logger.Info("starting execution pass",
		zap.Int("nodes", len(order)),
		zap.Int("edges", len(edges)),
	)

	byID := make(map[string]flow.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	deps := flow.Dependencies(edges)
	produced := make(map[string]*Outputs)

	for _, nodeID := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		node, ok := byID[nodeID]
		if !ok {
			continue
		}

		e.setStatus(nodeID, flow.StatusGenerating)

		if err := e.executeNode(ctx, node, deps[nodeID], produced); err != nil {
			e.errors.Record(fmt.Errorf("Failed to execute node %s: %w", nodeID, err), nodeID)
			e.setStatus(nodeID, flow.StatusError)
			continue
		}
		e.setStatus(nodeID, flow.StatusComplete)
	}

	e.logger.Info("execution pass completed")
	return nil
}

// executeNode produces the resolved-output record for one node. Input
// nodes publish their static content; model nodes invoke the client.
func (e *Engine) executeNode(ctx context.Context, node flow.Node, deps []flow.Dependency, produced map[string]*Outputs) error {
	switch node.Type {
	case flow.NodeTextInput:
		produced[node.ID] = &Outputs{Prompt: node.Data.Prompt}
		return nil

	case flow.NodeImageInput:
		if node.Data.UploadedImage != "" {
			produced[node.ID] = &Outputs{Image: node.Data.UploadedImage}
		}
		return nil

	case flow.NodeModel:
		return e.executeModelNode(ctx, node, deps, produced)

	default:
		// Organization boxes carry no data flow.
		return nil
	}
}

func (e *Engine) executeModelNode(ctx context.Context, node flow.Node, deps []flow.Dependency, produced map[string]*Outputs) error {
	modelID := node.Data.Model
	model, ok := catalog.Lookup(modelID)
	if !ok {
		return fmt.Errorf("unknown model %q", modelID)
	}

	in := resolveInputs(deps, produced)
	input, err := buildPayload(node, modelID, model, in)
	if errors.Is(err, errInsufficientInput) {
		// Not an error: the node simply has nothing to run on.
		e.logger.Debug("skipping node with insufficient input",
			zap.String("node_id", node.ID),
			zap.String("model", modelID),
		)
		return nil
	}
	if err != nil {
		return err
	}

	count := node.Data.OutputCount
	if count < 1 {
		count = 1
	}
	if count > maxOutputCount {
		count = maxOutputCount
	}

	statuses := make([]flow.SlotStatus, count)
	for i := range statuses {
		statuses[i] = flow.SlotGenerating
	}
	e.board.UpdateNodeData(node.ID, func(d *flow.NodeData) {
		d.OutputStatuses = append([]flow.SlotStatus(nil), statuses...)
	})

	e.logger.Info("invoking model",
		zap.String("node_id", node.ID),
		zap.String("model", modelID),
		zap.Int("slots", count),
	)

	outputType := flow.OutputType(model.Category.OutputType())
	results := make([]string, count)
	settled := make([]bool, count)

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()

			out, err := e.invokeSlot(ctx, modelID, model, input)
			if err != nil {
				e.errors.Record(
					fmt.Errorf("Failed to generate output %d: %w", slot+1, err),
					node.ID,
				)
				e.board.UpdateNodeData(node.ID, func(d *flow.NodeData) {
					if slot < len(d.OutputStatuses) {
						d.OutputStatuses[slot] = flow.SlotError
					}
				})
				return
			}

			results[slot] = out
			settled[slot] = true

			// Each completed slot lands in the board immediately; the
			// merge is by index against current state, never a blind
			// replacement, because sibling slots race through here.
			e.board.UpdateNodeData(node.ID, func(d *flow.NodeData) {
				if slot < len(d.OutputStatuses) {
					d.OutputStatuses[slot] = flow.SlotComplete
				}
				if d.Output == "" {
					d.Output = out
				}
				d.Outputs = append(d.Outputs, out)
				d.OutputType = outputType
			})
		}(i)
	}
	// Settle-all barrier: a failed slot never cancels its siblings.
	wg.Wait()

	valid := make([]string, 0, count)
	for i, ok := range settled {
		if ok {
			valid = append(valid, results[i])
		}
	}
	if len(valid) == 0 {
		return nil
	}

	e.board.UpdateNodeData(node.ID, func(d *flow.NodeData) {
		d.Output = valid[0]
		d.Outputs = append([]string(nil), valid...)
		d.OutputType = outputType
	})

	produced[node.ID] = outputsFor(model.Category, valid)
	e.history.Add(modelID, in.prompt, outputType, valid, node.ID)
	return nil
}

// invokeSlot issues one inference call and reduces the normalized
// response to the slot's single result. Language-model responses that
// arrive as multiple string fragments are concatenated.
func (e *Engine) invokeSlot(ctx context.Context, modelID string, model catalog.Model, input map[string]any) (string, error) {
	out, err := e.client.Invoke(ctx, modelID, input)
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", fmt.Errorf("model %s returned no output", modelID)
	}
	if model.Category == catalog.CategoryLanguage && len(out) > 1 {
		return strings.Join(out, ""), nil
	}
	return out[0], nil
}

// outputsFor classifies a node's valid outputs into the resolved-output
// record shape its downstream consumers read.
func outputsFor(category catalog.Category, valid []string) *Outputs {
	switch category {
	case catalog.CategoryVideo, catalog.CategoryLipsync:
		return &Outputs{Video: valid[0], Videos: valid}
	case catalog.CategoryLanguage:
		return &Outputs{Text: valid[0], Texts: valid}
	case catalog.CategoryVoice:
		return &Outputs{Audio: valid[0], Audios: valid}
	default:
		return &Outputs{Image: valid[0], Images: valid}
	}
}

func (e *Engine) setStatus(nodeID string, status flow.NodeStatus) {
	e.board.UpdateNodeData(nodeID, func(d *flow.NodeData) {
		d.Status = status
	})
}

func toJSONString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

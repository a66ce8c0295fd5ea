package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/viceroymiami/chatgpt-media-flow/flow"
)

// fakeClient records every invocation and answers from a per-model
// script. Slot calls race, so all state is mutex-guarded.
type fakeClient struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(call int, model string, input map[string]any) ([]string, error)
}

type fakeCall struct {
	model string
	input map[string]any
}

func (c *fakeClient) Invoke(ctx context.Context, model string, input map[string]any) ([]string, error) {
	c.mu.Lock()
	n := len(c.calls)
	c.calls = append(c.calls, fakeCall{model: model, input: input})
	c.mu.Unlock()
	return c.respond(n, model, input)
}

func (c *fakeClient) callsFor(model string) []fakeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []fakeCall
	for _, call := range c.calls {
		if call.model == model {
			out = append(out, call)
		}
	}
	return out
}

func newTestEngine(t *testing.T, client Client) (*Engine, *flow.Board) {
	t.Helper()
	board := flow.NewBoard(zap.NewNop())
	eng := New(board, client, NewHistory(), NewRecorder(zap.NewNop()), zap.NewNop())
	return eng, board
}

func TestExecuteTextToImage(t *testing.T) {
	client := &fakeClient{respond: func(call int, model string, input map[string]any) ([]string, error) {
		return []string{fmt.Sprintf("https://cdn.example.com/out-%d.png", call)}, nil
	}}
	eng, board := newTestEngine(t, client)

	text := board.AddNode(flow.NodeTextInput, flow.Position{})
	board.UpdateNodeData(text.ID, func(d *flow.NodeData) { d.Prompt = "a red fox" })
	model := board.AddModelNode("black-forest-labs/flux-schnell", "Flux", flow.Position{})
	board.UpdateNodeData(model.ID, func(d *flow.NodeData) { d.OutputCount = 2 })

	_, err := board.Connect(text.ID, "prompt", model.ID, "prompt")
	require.NoError(t, err)

	require.NoError(t, eng.Execute(context.Background()))

	got, _ := board.Node(model.ID)
	assert.Equal(t, flow.StatusComplete, got.Data.Status)
	assert.Equal(t, flow.OutputImage, got.Data.OutputType)
	assert.Len(t, got.Data.Outputs, 2)
	assert.Equal(t, got.Data.Outputs[0], got.Data.Output)
	assert.Equal(t, []flow.SlotStatus{flow.SlotComplete, flow.SlotComplete}, got.Data.OutputStatuses)

	calls := client.callsFor("black-forest-labs/flux-schnell")
	require.Len(t, calls, 2)
	for _, call := range calls {
		assert.Equal(t, "a red fox", call.input["prompt"])
		assert.Equal(t, "1:1", call.input["aspect_ratio"])
	}

	entries := eng.History().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "black-forest-labs/flux-schnell", entries[0].Model)
	assert.Equal(t, "a red fox", entries[0].Prompt)
	assert.Equal(t, model.ID, entries[0].NodeID)
	assert.Len(t, entries[0].Outputs, 2)

	assert.Empty(t, eng.Errors().Records())
}

func TestExecutePartialSlotFailure(t *testing.T) {
	client := &fakeClient{respond: func(call int, model string, input map[string]any) ([]string, error) {
		if call == 1 {
			return nil, errors.New("network timeout talking to upstream")
		}
		return []string{fmt.Sprintf("https://cdn.example.com/out-%d.png", call)}, nil
	}}
	eng, board := newTestEngine(t, client)

	text := board.AddNode(flow.NodeTextInput, flow.Position{})
	board.UpdateNodeData(text.ID, func(d *flow.NodeData) { d.Prompt = "storm clouds" })
	model := board.AddModelNode("black-forest-labs/flux-schnell", "Flux", flow.Position{})
	board.UpdateNodeData(model.ID, func(d *flow.NodeData) { d.OutputCount = 3 })
	_, err := board.Connect(text.ID, "prompt", model.ID, "prompt")
	require.NoError(t, err)

	require.NoError(t, eng.Execute(context.Background()), "slot failures never fail the pass")

	got, _ := board.Node(model.ID)
	assert.Equal(t, flow.StatusComplete, got.Data.Status, "node completes on partial success")
	assert.Len(t, got.Data.Outputs, 2, "only valid outputs survive aggregation")
	assert.Equal(t, got.Data.Outputs[0], got.Data.Output)

	var complete, failed int
	for _, s := range got.Data.OutputStatuses {
		switch s {
		case flow.SlotComplete:
			complete++
		case flow.SlotError:
			failed++
		}
	}
	assert.Equal(t, 2, complete)
	assert.Equal(t, 1, failed)

	records := eng.Errors().Records()
	require.Len(t, records, 1)
	assert.Equal(t, ErrorNetwork, records[0].Type)
	assert.Contains(t, records[0].Message, "Network error")
	assert.Equal(t, model.ID, records[0].NodeID)

	require.Len(t, eng.History().Entries(), 1)
	assert.Len(t, eng.History().Entries()[0].Outputs, 2)
}

func TestExecuteAllSlotsFail(t *testing.T) {
	client := &fakeClient{respond: func(call int, model string, input map[string]any) ([]string, error) {
		return nil, errors.New("insufficient credits on account")
	}}
	eng, board := newTestEngine(t, client)

	text := board.AddNode(flow.NodeTextInput, flow.Position{})
	board.UpdateNodeData(text.ID, func(d *flow.NodeData) { d.Prompt = "anything" })
	model := board.AddModelNode("black-forest-labs/flux-schnell", "Flux", flow.Position{})
	board.UpdateNodeData(model.ID, func(d *flow.NodeData) { d.OutputCount = 2 })
	_, err := board.Connect(text.ID, "prompt", model.ID, "prompt")
	require.NoError(t, err)

	require.NoError(t, eng.Execute(context.Background()))

	got, _ := board.Node(model.ID)
	assert.Empty(t, got.Data.Output)
	assert.Equal(t, []flow.SlotStatus{flow.SlotError, flow.SlotError}, got.Data.OutputStatuses)
	assert.Empty(t, eng.History().Entries(), "nothing valid, nothing recorded")
	assert.Len(t, eng.Errors().Records(), 2)
	for _, rec := range eng.Errors().Records() {
		assert.Equal(t, ErrorBalance, rec.Type)
	}
}

func TestExecuteSkipsUnconnectedModel(t *testing.T) {
	client := &fakeClient{respond: func(call int, model string, input map[string]any) ([]string, error) {
		t.Error("client must not be invoked")
		return nil, nil
	}}
	eng, board := newTestEngine(t, client)

	model := board.AddModelNode("black-forest-labs/flux-schnell", "Flux", flow.Position{})

	require.NoError(t, eng.Execute(context.Background()))

	got, _ := board.Node(model.ID)
	assert.Equal(t, flow.StatusComplete, got.Data.Status, "skipped nodes still finish cleanly")
	assert.Empty(t, got.Data.Output)
	assert.Empty(t, eng.Errors().Records())
	assert.Empty(t, eng.History().Entries())
}

func TestExecuteLanguageChainsIntoImage(t *testing.T) {
	client := &fakeClient{respond: func(call int, model string, input map[string]any) ([]string, error) {
		if model == "openai/gpt-4o" {
			return []string{"an elaborate ", "scene description"}, nil
		}
		return []string{"https://cdn.example.com/final.png"}, nil
	}}
	eng, board := newTestEngine(t, client)

	text := board.AddNode(flow.NodeTextInput, flow.Position{})
	board.UpdateNodeData(text.ID, func(d *flow.NodeData) { d.Prompt = "expand this idea" })
	lang := board.AddModelNode("openai/gpt-4o", "GPT-4o", flow.Position{})
	img := board.AddModelNode("black-forest-labs/flux-schnell", "Flux", flow.Position{})

	_, err := board.Connect(text.ID, "prompt", lang.ID, "prompt")
	require.NoError(t, err)
	_, err = board.Connect(lang.ID, "text", img.ID, "prompt")
	require.NoError(t, err)

	require.NoError(t, eng.Execute(context.Background()))

	langNode, _ := board.Node(lang.ID)
	assert.Equal(t, "an elaborate scene description", langNode.Data.Output,
		"language fragments concatenate into one result")
	assert.Equal(t, flow.OutputText, langNode.Data.OutputType)

	calls := client.callsFor("black-forest-labs/flux-schnell")
	require.Len(t, calls, 1)
	assert.Equal(t, "an elaborate scene description", calls[0].input["prompt"],
		"downstream prompt is the generated text")
}

func TestExecuteImageFeedsVideo(t *testing.T) {
	client := &fakeClient{respond: func(call int, model string, input map[string]any) ([]string, error) {
		if model == "black-forest-labs/flux-schnell" {
			return []string{"https://cdn.example.com/frame.png"}, nil
		}
		return []string{"https://cdn.example.com/clip.mp4"}, nil
	}}
	eng, board := newTestEngine(t, client)

	text := board.AddNode(flow.NodeTextInput, flow.Position{})
	board.UpdateNodeData(text.ID, func(d *flow.NodeData) { d.Prompt = "sunrise over dunes" })
	img := board.AddModelNode("black-forest-labs/flux-schnell", "Flux", flow.Position{})
	vid := board.AddModelNode("wan-video/wan-2.2-5b-fast", "Wan", flow.Position{})

	_, err := board.Connect(text.ID, "prompt", img.ID, "prompt")
	require.NoError(t, err)
	_, err = board.Connect(text.ID, "prompt", vid.ID, "prompt")
	require.NoError(t, err)
	_, err = board.Connect(img.ID, "image", vid.ID, "image")
	require.NoError(t, err)

	require.NoError(t, eng.Execute(context.Background()))

	calls := client.callsFor("wan-video/wan-2.2-5b-fast")
	require.Len(t, calls, 1)
	assert.Equal(t, "https://cdn.example.com/frame.png", calls[0].input["image"])

	vidNode, _ := board.Node(vid.ID)
	assert.Equal(t, flow.OutputVideo, vidNode.Data.OutputType)
	assert.Equal(t, "https://cdn.example.com/clip.mp4", vidNode.Data.Output)
}

func TestExecuteCycleReported(t *testing.T) {
	client := &fakeClient{respond: func(call int, model string, input map[string]any) ([]string, error) {
		return []string{"x"}, nil
	}}
	eng, board := newTestEngine(t, client)

	a := board.AddModelNode("openai/gpt-4o", "A", flow.Position{})
	b := board.AddModelNode("openai/gpt-4o", "B", flow.Position{})
	_, err := board.Connect(a.ID, "text", b.ID, "prompt")
	require.NoError(t, err)
	_, err = board.Connect(b.ID, "text", a.ID, "prompt")
	require.NoError(t, err)

	err = eng.Execute(context.Background())
	var cyc *flow.ErrCycleDetected
	require.ErrorAs(t, err, &cyc)
	require.Len(t, eng.Errors().Records(), 1)
}

func TestExecuteClearsPreviousResults(t *testing.T) {
	client := &fakeClient{respond: func(call int, model string, input map[string]any) ([]string, error) {
		return []string{"https://cdn.example.com/new.png"}, nil
	}}
	eng, board := newTestEngine(t, client)

	text := board.AddNode(flow.NodeTextInput, flow.Position{})
	board.UpdateNodeData(text.ID, func(d *flow.NodeData) { d.Prompt = "p" })
	model := board.AddModelNode("black-forest-labs/flux-schnell", "Flux", flow.Position{})
	board.UpdateNodeData(model.ID, func(d *flow.NodeData) {
		d.Output = "https://cdn.example.com/stale.png"
		d.Outputs = []string{"https://cdn.example.com/stale.png"}
	})
	_, err := board.Connect(text.ID, "prompt", model.ID, "prompt")
	require.NoError(t, err)

	require.NoError(t, eng.Execute(context.Background()))

	got, _ := board.Node(model.ID)
	assert.Equal(t, []string{"https://cdn.example.com/new.png"}, got.Data.Outputs,
		"stale results never leak into a fresh pass")
}

func TestExecuteSingleFlight(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{respond: func(call int, model string, input map[string]any) ([]string, error) {
		<-release
		return []string{"https://cdn.example.com/slow.png"}, nil
	}}
	eng, board := newTestEngine(t, client)

	text := board.AddNode(flow.NodeTextInput, flow.Position{})
	board.UpdateNodeData(text.ID, func(d *flow.NodeData) { d.Prompt = "p" })
	model := board.AddModelNode("black-forest-labs/flux-schnell", "Flux", flow.Position{})
	_, err := board.Connect(text.ID, "prompt", model.ID, "prompt")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- eng.Execute(context.Background()) }()

	require.Eventually(t, eng.Executing, time.Second, time.Millisecond)
	assert.ErrorIs(t, eng.Execute(context.Background()), ErrAlreadyExecuting)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, eng.Executing())
}

func TestExecuteOutputCountClamped(t *testing.T) {
	client := &fakeClient{respond: func(call int, model string, input map[string]any) ([]string, error) {
		return []string{fmt.Sprintf("https://cdn.example.com/%d.png", call)}, nil
	}}
	eng, board := newTestEngine(t, client)

	text := board.AddNode(flow.NodeTextInput, flow.Position{})
	board.UpdateNodeData(text.ID, func(d *flow.NodeData) { d.Prompt = "p" })
	model := board.AddModelNode("black-forest-labs/flux-schnell", "Flux", flow.Position{})
	board.UpdateNodeData(model.ID, func(d *flow.NodeData) { d.OutputCount = 50 })
	_, err := board.Connect(text.ID, "prompt", model.ID, "prompt")
	require.NoError(t, err)

	require.NoError(t, eng.Execute(context.Background()))
	assert.Len(t, client.callsFor("black-forest-labs/flux-schnell"), maxOutputCount)
}

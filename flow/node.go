// Package flow holds the canonical workflow graph: the node and edge
// collections, their structural invariants, connection-type validation,
// and the topological scheduler that turns the graph into an execution
// order.
package flow

import (
	"strings"

	"github.com/google/uuid"

	"github.com/viceroymiami/chatgpt-media-flow/catalog"
)

// NodeType identifies what kind of node sits on the canvas.
type NodeType string

const (
	NodeTextInput       NodeType = "text_input"
	NodeImageInput      NodeType = "image_input"
	NodeModel           NodeType = "model"
	NodeOrganizationBox NodeType = "organization_box"
)

// SlotStatus tracks one of a model node's parallel output slots.
type SlotStatus string

const (
	SlotPending    SlotStatus = "pending"
	SlotGenerating SlotStatus = "generating"
	SlotComplete   SlotStatus = "complete"
	SlotError      SlotStatus = "error"
)

// NodeStatus is the per-node state during an execution pass. The zero
// value means the node has not run.
type NodeStatus string

const (
	StatusGenerating NodeStatus = "generating"
	StatusComplete   NodeStatus = "complete"
	StatusError      NodeStatus = "error"
)

// OutputType classifies what an executed model node produced.
type OutputType string

const (
	OutputImage OutputType = "image"
	OutputVideo OutputType = "video"
	OutputText  OutputType = "text"
	OutputAudio OutputType = "audio"
)

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the canvas pan/zoom state persisted with a snapshot.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// NodeData carries a node's plain-value state. UI mutators are not part
// of node data; mutations go through Board methods so the persisted
// shape is serializable as-is.
type NodeData struct {
	Name            string `json:"name,omitempty"`
	Label           string `json:"label,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`

	// text_input
	Prompt string `json:"prompt,omitempty"`

	// image_input: a base64 data URL, empty when nothing is uploaded.
	UploadedImage string `json:"uploadedImage,omitempty"`

	// model
	Model        string `json:"model,omitempty"`
	AspectRatio  string `json:"aspectRatio,omitempty"`
	OutputCount  int    `json:"outputCount,omitempty"`
	SystemPrompt string `json:"systemPrompt,omitempty"`
	VoiceID      string `json:"voice_id,omitempty"`
	SyncMode     string `json:"sync_mode,omitempty"`

	// organization_box
	Description string  `json:"description,omitempty"`
	Width       float64 `json:"width,omitempty"`
	Height      float64 `json:"height,omitempty"`

	// Execution results, populated only during/after a run and cleared
	// at the start of each pass.
	Output         string       `json:"output,omitempty"`
	Outputs        []string     `json:"outputs,omitempty"`
	OutputStatuses []SlotStatus `json:"outputStatuses,omitempty"`
	OutputType     OutputType   `json:"outputType,omitempty"`
	Status         NodeStatus   `json:"status,omitempty"`
}

// Node is one unit of the workflow graph.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Edge is a directed, type-checked connection from a source node's
// output handle to a target node's input handle. At most one edge may
// terminate at a given (target, targetHandle) pair.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// newID generates a fresh opaque identifier. Ids are unique for the
// lifetime of a session and never reused.
func newID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// defaultData returns the per-type initial node data.
func defaultData(typ NodeType) NodeData {
	switch typ {
	case NodeTextInput:
		return NodeData{Label: "Prompt Text"}
	case NodeImageInput:
		return NodeData{Label: "Upload Image"}
	case NodeModel:
		return NodeData{
			Label:       "Model",
			Model:       "black-forest-labs/flux-schnell",
			AspectRatio: catalog.DefaultAspectRatio("black-forest-labs/flux-schnell"),
			OutputCount: 1,
		}
	case NodeOrganizationBox:
		return NodeData{Label: "Untitled", Width: 200, Height: 150}
	default:
		return NodeData{}
	}
}

// clearResults drops all execution-result fields from node data.
func (d *NodeData) clearResults() {
	d.Output = ""
	d.Outputs = nil
	d.OutputStatuses = nil
	d.OutputType = ""
	d.Status = ""
}

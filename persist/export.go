package persist

import (
	"encoding/json"
	"time"

	"github.com/viceroymiami/chatgpt-media-flow/flow"
)

// exportDocument is the shareable flow file shape. Unlike autosave
// snapshots it omits the save timestamp and schema version.
type exportDocument struct {
	Name     string         `json:"name"`
	Nodes    []flow.Node    `json:"nodes"`
	Edges    []flow.Edge    `json:"edges"`
	Viewport *flow.Viewport `json:"viewport,omitempty"`
}

// Export serializes the board as an indented, shareable JSON document.
func Export(board *flow.Board) ([]byte, error) {
	snap := TakeSnapshot(board, time.Time{})
	doc := exportDocument{
		Name:     snap.Name,
		Nodes:    snap.Nodes,
		Edges:    snap.Edges,
		Viewport: snap.Viewport,
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import parses a flow document and replaces the board's content with
// it. Both exported files and raw autosave snapshots are accepted; any
// document without a nodes array is rejected with ErrInvalidDocument.
// Unlike the restore path, an import is a user edit: it marks the board
// dirty so it autosaves and accepts any pending restore.
func Import(board *flow.Board, data []byte) error {
	snap, err := parseSnapshot(data)
	if err != nil {
		return err
	}
	board.ReplaceDirty(snap.DisplayName(), snap.Nodes, snap.Edges)
	if snap.Viewport != nil {
		board.SetViewport(*snap.Viewport)
	}
	return nil
}

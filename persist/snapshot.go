package persist

import (
	"encoding/json"
	"time"

	"github.com/viceroymiami/chatgpt-media-flow/flow"
)

// Version stamps every saved snapshot; bumped with the snapshot format.
const Version = "2.0.0"

// KeyPrefix namespaces workflow snapshots inside the store.
const KeyPrefix = "flow_"

// Snapshot is the persistence unit: the serializable graph plus save
// metadata. Node and edge data are plain values, so the snapshot
// marshals as-is; mutator callbacks live outside the graph entirely and
// are re-attached conceptually at the application root, never here.
type Snapshot struct {
	Name      string         `json:"name"`
	Nodes     []flow.Node    `json:"nodes"`
	Edges     []flow.Edge    `json:"edges"`
	Viewport  *flow.Viewport `json:"viewport,omitempty"`
	BoardName string         `json:"boardName,omitempty"`
	LastSaved string         `json:"lastSaved,omitempty"`
	Version   string         `json:"version,omitempty"`
}

// SnapshotKey derives the store key for a workflow name.
func SnapshotKey(name string) string {
	if name == "" {
		name = flow.DefaultBoardName
	}
	return KeyPrefix + name
}

// TakeSnapshot captures the board's current state as an autosave
// snapshot.
func TakeSnapshot(b *flow.Board, now time.Time) Snapshot {
	vp := b.Viewport()
	return Snapshot{
		Name:      b.Name(),
		Nodes:     b.Nodes(),
		Edges:     b.Edges(),
		Viewport:  &vp,
		BoardName: b.Name(),
		LastSaved: now.UTC().Format(time.RFC3339),
		Version:   Version,
	}
}

// Marshal encodes a snapshot for storage.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// parseSnapshot decodes stored bytes; a missing nodes array makes the
// snapshot invalid.
func parseSnapshot(data []byte) (Snapshot, error) {
	// Probe for the nodes key first so a structurally-valid JSON object
	// without a nodes array is still rejected.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Snapshot{}, err
	}
	if _, ok := probe["nodes"]; !ok {
		return Snapshot{}, ErrInvalidDocument
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	if s.Nodes == nil {
		return Snapshot{}, ErrInvalidDocument
	}
	return s, nil
}

// DisplayName returns the snapshot's workflow name, preferring the
// explicit name over the autosave board name.
func (s Snapshot) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.BoardName != "" {
		return s.BoardName
	}
	return flow.DefaultBoardName
}

// savedAt parses the LastSaved timestamp; zero time when absent or
// malformed.
func (s Snapshot) savedAt() time.Time {
	t, err := time.Parse(time.RFC3339, s.LastSaved)
	if err != nil {
		return time.Time{}
	}
	return t
}

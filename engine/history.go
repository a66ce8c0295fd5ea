package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/viceroymiami/chatgpt-media-flow/flow"
)

// HistoryEntry records one completed model-node run that produced at
// least one valid output. Entries are append-only and never mutated.
type HistoryEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt"`
	Type      flow.OutputType `json:"type"`
	Outputs   []string        `json:"outputs"`
	NodeID    string          `json:"nodeId"`
}

// History accumulates run records newest-first. The core applies no
// hard cap; trimming for display is a UI concern.
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

// NewHistory creates an empty history recorder.
func NewHistory() *History {
	return &History{}
}

// Add prepends a new entry and returns it.
func (h *History) Add(model, prompt string, typ flow.OutputType, outputs []string, nodeID string) HistoryEntry {
	entry := HistoryEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Model:     model,
		Prompt:    prompt,
		Type:      typ,
		Outputs:   outputs,
		NodeID:    nodeID,
	}
	h.mu.Lock()
	h.entries = append([]HistoryEntry{entry}, h.entries...)
	h.mu.Unlock()
	return entry
}

// Entries returns a copy of the history, newest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Clear drops all history entries.
func (h *History) Clear() {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()
}

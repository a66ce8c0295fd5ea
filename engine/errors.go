package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrorClass buckets a raw failure into an actionable category.
type ErrorClass string

const (
	ErrorBalance ErrorClass = "balance"
	ErrorAuth    ErrorClass = "auth"
	ErrorNetwork ErrorClass = "network"
	ErrorAPI     ErrorClass = "api"
)

// maxRecorded caps the visible error list at the 10 most recent.
const maxRecorded = 10

// ErrorRecord is one classified, user-facing failure.
type ErrorRecord struct {
	ID            string     `json:"id"`
	Message       string     `json:"message"`
	Type          ErrorClass `json:"type"`
	Timestamp     time.Time  `json:"timestamp"`
	NodeID        string     `json:"nodeId,omitempty"`
	OriginalError string     `json:"originalError"`
}

// Recorder classifies failures and keeps a capped, newest-first list
// for the error surface. It never fails; recording is best-effort.
type Recorder struct {
	mu      sync.RWMutex
	records []ErrorRecord
	visible bool
	logger  *zap.Logger
}

// NewRecorder creates an error recorder.
func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger.With(zap.String("component", "error_recorder"))}
}

// Classify buckets an error by case-insensitive substring matching on
// its message.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorAPI
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "insufficient") &&
		(strings.Contains(msg, "credits") || strings.Contains(msg, "balance")) {
		return ErrorBalance
	}
	if strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "authentication") || strings.Contains(msg, "forbidden") {
		return ErrorAuth
	}
	if strings.Contains(msg, "network") || strings.Contains(msg, "fetch") ||
		strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") {
		return ErrorNetwork
	}
	return ErrorAPI
}

// userMessage returns the suggested-next-steps text for an error class,
// falling back to the raw message for unclassified API errors.
func userMessage(class ErrorClass, raw string) string {
	switch class {
	case ErrorBalance:
		return "Insufficient credits to run this model. Please check your account balance or add more credits."
	case ErrorAuth:
		return "Authentication failed. Please check your API key or sign in again."
	case ErrorNetwork:
		return "Network connection failed. Please check your internet connection and try again."
	default:
		return raw
	}
}

// Record classifies err, attaches the per-class user-facing message,
// prepends it to the capped list, and flags the surface visible. The
// nodeID may be empty for failures not tied to a node.
func (r *Recorder) Record(err error, nodeID string) ErrorRecord {
	class := Classify(err)
	raw := ""
	if err != nil {
		raw = err.Error()
	}

	rec := ErrorRecord{
		ID:            uuid.New().String(),
		Message:       userMessage(class, raw),
		Type:          class,
		Timestamp:     time.Now(),
		NodeID:        nodeID,
		OriginalError: raw,
	}

	r.mu.Lock()
	r.records = append([]ErrorRecord{rec}, r.records...)
	if len(r.records) > maxRecorded {
		r.records = r.records[:maxRecorded]
	}
	r.visible = true
	r.mu.Unlock()

	r.logger.Warn("error recorded",
		zap.String("class", string(class)),
		zap.String("node_id", nodeID),
		zap.String("error", raw),
	)
	return rec
}

// Records returns a copy of the recorded errors, newest first.
func (r *Recorder) Records() []ErrorRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ErrorRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Visible reports whether the error surface should be shown.
func (r *Recorder) Visible() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.visible
}

// Remove deletes a single record by id, hiding the surface when the
// list empties.
func (r *Recorder) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := r.records[:0]
	for _, rec := range r.records {
		if rec.ID != id {
			records = append(records, rec)
		}
	}
	r.records = records
	if len(r.records) == 0 {
		r.visible = false
	}
}

// Clear drops all records and hides the surface.
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.records = nil
	r.visible = false
	r.mu.Unlock()
}

package flow

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/viceroymiami/chatgpt-media-flow/catalog"
)

// ErrUnknownNode is returned when a connection references a node id
// that is not on the board.
var ErrUnknownNode = errors.New("unknown node")

// ConnectionError explains why a prospective edge was rejected.
type ConnectionError struct {
	SourceType catalog.HandleType
	TargetType catalog.HandleType
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("Expected %s input, got %s", e.TargetType, e.SourceType)
}

// baseHandle strips a trailing _<index> suffix from a handle id:
// image_2 -> image, last_frame_image -> last_frame_image.
func baseHandle(handle string) string {
	if i := strings.LastIndex(handle, "_"); i > 0 {
		suffix := handle[i+1:]
		if suffix != "" && isDigits(suffix) {
			return handle[:i]
		}
	}
	return handle
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SourceHandleType derives the type a source handle emits.
func SourceHandleType(node Node, handle string) catalog.HandleType {
	switch node.Type {
	case NodeTextInput:
		return catalog.HandlePrompt
	case NodeImageInput:
		return catalog.HandleImage
	case NodeModel:
		switch base := baseHandle(handle); base {
		case "image":
			return catalog.HandleImage
		case "video":
			return catalog.HandleVideo
		case "text":
			return catalog.HandleText
		default:
			return catalog.HandleType(base)
		}
	default:
		return catalog.HandleAny
	}
}

// TargetHandleType derives the type a target handle accepts. Model
// targets normalize the image handle aliases to image; any other handle
// id is its own type (prompt, video, audio, last_frame_image).
func TargetHandleType(node Node, handle string) catalog.HandleType {
	if node.Type == NodeModel {
		switch handle {
		case "image", "input_image", "image_1", "image_2":
			return catalog.HandleImage
		}
	}
	return catalog.HandleType(handle)
}

// CheckConnection decides whether a candidate edge is legal. It is a
// pure function usable both for drag-hover preview and at commit time.
//
// Accepted when the types match, when the source is a prompt (prompts
// are universally acceptable), or when language-model text chains into
// a prompt input.
func CheckConnection(source Node, sourceHandle string, target Node, targetHandle string) error {
	srcType := SourceHandleType(source, sourceHandle)
	dstType := TargetHandleType(target, targetHandle)

	switch {
	case srcType == dstType:
		return nil
	case srcType == catalog.HandlePrompt:
		return nil
	case srcType == catalog.HandleText && dstType == catalog.HandlePrompt:
		return nil
	}
	return &ConnectionError{SourceType: srcType, TargetType: dstType}
}

// DragSession tracks an in-progress connection drag. Hover validates
// the hovered target handle against the drag source without touching
// the board; the returned error is the inline diagnostic to surface
// near the handle.
type DragSession struct {
	mu       sync.Mutex
	active   bool
	source   Node
	handleID string
}

// Begin starts a drag from a source handle.
func (s *DragSession) Begin(source Node, handleID string) {
	s.mu.Lock()
	s.active = true
	s.source = source
	s.handleID = handleID
	s.mu.Unlock()
}

// Hover previews the drop onto a target handle. Returns nil when the
// connection would be accepted.
func (s *DragSession) Hover(target Node, targetHandle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	return CheckConnection(s.source, s.handleID, target, targetHandle)
}

// End finishes the drag.
func (s *DragSession) End() {
	s.mu.Lock()
	s.active = false
	s.source = Node{}
	s.handleID = ""
	s.mu.Unlock()
}

// Active reports whether a drag is in progress.
func (s *DragSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

package engine

import (
	"errors"

	"github.com/viceroymiami/chatgpt-media-flow/catalog"
	"github.com/viceroymiami/chatgpt-media-flow/flow"
)

// errInsufficientInput marks a node that cannot execute because a
// required input is unconnected. The node is skipped silently, not
// failed.
var errInsufficientInput = errors.New("insufficient input")

// message is one chat turn of a language-model payload.
type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// contentPart is one element of a multimodal user message.
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// checkRequired verifies that every catalog input marked required is
// present in the resolved record. Prompt- and text-typed inputs are
// satisfied by the resolved prompt scalar.
func checkRequired(m catalog.Model, in resolvedInputs) error {
	for _, inp := range m.Inputs {
		if !inp.Required {
			continue
		}
		switch inp.Type {
		case catalog.HandlePrompt, catalog.HandleText:
			if in.prompt == "" {
				return errInsufficientInput
			}
		default:
			if !in.has(inp.ID) {
				return errInsufficientInput
			}
		}
	}
	return nil
}

// buildPayload turns resolved inputs plus node parameters into the
// exact request body the inference call expects, dispatched by model
// category.
func buildPayload(node flow.Node, modelID string, m catalog.Model, in resolvedInputs) (map[string]any, error) {
	// The prompt gate: nodes without a resolved prompt do not execute,
	// except lipsync which runs on video+audio alone.
	if m.Category == catalog.CategoryLipsync {
		if !in.has("video") || !in.has("audio") {
			return nil, errInsufficientInput
		}
	} else if in.prompt == "" {
		return nil, errInsufficientInput
	}

	if err := checkRequired(m, in); err != nil {
		return nil, err
	}

	switch m.Category {
	case catalog.CategoryLipsync:
		syncMode := node.Data.SyncMode
		if syncMode == "" {
			syncMode = catalog.DefaultSyncMode(modelID)
		}
		return map[string]any{
			"video":     in.handle("video"),
			"audio":     in.handle("audio"),
			"sync_mode": syncMode,
		}, nil

	case catalog.CategoryVideo:
		input := map[string]any{
			"prompt":       in.prompt,
			"aspect_ratio": node.Data.AspectRatio,
		}
		if in.inputImage != "" {
			input["image"] = in.inputImage
		}
		if m.LastFrameSupport && in.has("last_frame_image") {
			input["last_frame_image"] = in.handle("last_frame_image")
		}
		return input, nil

	case catalog.CategoryLanguage:
		var messages []message
		if node.Data.SystemPrompt != "" {
			messages = append(messages, message{Role: "system", Content: node.Data.SystemPrompt})
		}
		if in.inputImage != "" && m.Multimodal {
			messages = append(messages, message{Role: "user", Content: []contentPart{
				{Type: "text", Text: in.prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: in.inputImage}},
			}})
		} else {
			messages = append(messages, message{Role: "user", Content: in.prompt})
		}
		return map[string]any{"messages": messages}, nil

	case catalog.CategoryVoice:
		input := map[string]any{"text": in.prompt}
		voiceID := node.Data.VoiceID
		if voiceID == "" {
			voiceID = catalog.DefaultVoice(modelID)
		}
		if voiceID != "" {
			input["voice_id"] = voiceID
		}
		return input, nil

	default: // image
		input := map[string]any{"prompt": in.prompt}
		if !m.NoAspectRatio {
			ratio := node.Data.AspectRatio
			if ratio == "" {
				ratio = "1:1"
			}
			input["aspect_ratio"] = ratio
		}
		attachImageInput(input, m, in)
		return input, nil
	}
}

// attachImageInput places resolved image inputs under the parameter
// name the catalog declares for this model. Multi-reference models get
// a list of up to two images collected from the indexed handles.
func attachImageInput(input map[string]any, m catalog.Model, in resolvedInputs) {
	param := m.ImageParam
	if param == "" {
		param = "image"
	}

	if m.ImageParamIsList {
		var images []string
		if img := in.handle("image_1"); img != "" {
			images = append(images, img)
		}
		if img := in.handle("image_2"); img != "" {
			images = append(images, img)
		}
		if len(images) > 0 {
			input[param] = images
		}
		return
	}

	if img := in.handle(param); img != "" {
		input[param] = img
		return
	}
	if in.inputImage != "" {
		input[param] = in.inputImage
	}
}

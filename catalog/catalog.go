// Package catalog holds the static model catalog consumed by the flow
// editor core: each entry maps a model identifier to its input/output
// schema, category, and UI parameter options. The catalog is read-only;
// every other package treats it as a lookup table.
package catalog

import "sort"

// HandleType is the base type of a node port. Handle ids on nodes may
// carry an index suffix (image_1, image_2); the suffix is not part of
// the type.
type HandleType string

const (
	HandlePrompt HandleType = "prompt"
	HandleImage  HandleType = "image"
	HandleVideo  HandleType = "video"
	HandleText   HandleType = "text"
	HandleAudio  HandleType = "audio"
	HandleAny    HandleType = "any"
)

// Category classifies what kind of inference a model performs and
// therefore which payload shape it expects.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryLanguage Category = "language"
	CategoryVoice    Category = "voice"
	CategoryLipsync  Category = "lipsync"
)

// Input describes one typed input port of a model.
type Input struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     HandleType `json:"type"`
	Required bool       `json:"required"`
}

// Output describes one typed output port of a model.
type Output struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Type HandleType `json:"type"`
}

// Model is a single catalog entry.
type Model struct {
	Name        string
	Description string
	Category    Category
	Inputs      []Input
	Outputs     []Output

	// Params lists which optional UI parameters apply to this model.
	Params []string

	// Option lists for category-specific parameters. The first entry of
	// each list is the default.
	AspectRatios []string
	VoiceOptions []string
	SyncModes    []string

	// ImageParam is the request parameter name this model expects image
	// input under. Image-capable models declare their own name rather
	// than sharing one.
	ImageParam string
	// ImageParamIsList marks multi-reference models that take a list of
	// up to two images under ImageParam.
	ImageParamIsList bool

	// Multimodal marks language models that accept image parts inside a
	// user message.
	Multimodal bool
	// LastFrameSupport marks video models that accept an end frame.
	LastFrameSupport bool
	// NoAspectRatio marks models whose request must omit aspect_ratio.
	NoAspectRatio bool
}

// Entry pairs a model id with its catalog entry, for sorted listings.
type Entry struct {
	ID    string
	Model Model
}

// Models is the full catalog keyed by model id.
var Models = map[string]Model{
	"black-forest-labs/flux-schnell": {
		Name:        "Flux Schnell",
		Description: "Fast image generation",
		Inputs: []Input{
			{ID: "prompt", Name: "prompt", Type: HandlePrompt, Required: true},
		},
		Outputs:      []Output{{ID: "image", Name: "image", Type: HandleImage}},
		Category:     CategoryImage,
		Params:       []string{"aspectRatio"},
		AspectRatios: []string{"1:1", "16:9", "9:16"},
		ImageParam:   "image",
	},
	"google/nano-banana": {
		Name:        "Nano Banana",
		Description: "Edit and combine multiple images",
		Inputs: []Input{
			{ID: "prompt", Name: "prompt", Type: HandlePrompt, Required: true},
			{ID: "image_1", Name: "first image", Type: HandleImage, Required: true},
			{ID: "image_2", Name: "second image", Type: HandleImage, Required: true},
		},
		Outputs:          []Output{{ID: "image", Name: "image", Type: HandleImage}},
		Category:         CategoryImage,
		ImageParam:       "image_input",
		ImageParamIsList: true,
		NoAspectRatio:    true,
	},
	"black-forest-labs/flux-kontext-max": {
		Name:        "Flux Kontext Max",
		Description: "Image editing guided by a reference image",
		Inputs: []Input{
			{ID: "prompt", Name: "prompt", Type: HandlePrompt, Required: true},
			{ID: "input_image", Name: "reference image", Type: HandleImage, Required: false},
		},
		Outputs:      []Output{{ID: "image", Name: "image", Type: HandleImage}},
		Category:     CategoryImage,
		Params:       []string{"aspectRatio"},
		AspectRatios: []string{"1:1", "16:9", "9:16"},
		ImageParam:   "input_image",
	},
	"wan-video/wan-2.2-5b-fast": {
		Name:        "WAN",
		Description: "Fast video generation",
		Inputs: []Input{
			{ID: "prompt", Name: "prompt", Type: HandlePrompt, Required: true},
			{ID: "image", Name: "start frame", Type: HandleImage, Required: false},
		},
		Outputs:      []Output{{ID: "video", Name: "video", Type: HandleVideo}},
		Category:     CategoryVideo,
		Params:       []string{"aspectRatio"},
		AspectRatios: []string{"16:9", "9:16"},
		ImageParam:   "image",
	},
	"bytedance/seedance-1-lite": {
		Name:        "Seedance Lite",
		Description: "Video generation with start and end frame",
		Inputs: []Input{
			{ID: "prompt", Name: "prompt", Type: HandlePrompt, Required: true},
			{ID: "image", Name: "start frame", Type: HandleImage, Required: false},
			{ID: "last_frame_image", Name: "end frame", Type: HandleImage, Required: false},
		},
		Outputs:          []Output{{ID: "video", Name: "video", Type: HandleVideo}},
		Category:         CategoryVideo,
		Params:           []string{"aspectRatio"},
		AspectRatios:     []string{"1:1", "16:9", "9:16"},
		ImageParam:       "image",
		LastFrameSupport: true,
	},
	"bytedance/seedance-1-pro": {
		Name:        "Seedance Pro",
		Description: "Premium video generation",
		Inputs: []Input{
			{ID: "prompt", Name: "prompt", Type: HandlePrompt, Required: true},
			{ID: "image", Name: "start frame", Type: HandleImage, Required: false},
		},
		Outputs:      []Output{{ID: "video", Name: "video", Type: HandleVideo}},
		Category:     CategoryVideo,
		Params:       []string{"aspectRatio"},
		AspectRatios: []string{"1:1", "16:9", "9:16"},
		ImageParam:   "image",
	},
	"openai/gpt-4o": {
		Name:        "GPT-4o",
		Description: "Language model",
		Inputs: []Input{
			{ID: "prompt", Name: "prompt", Type: HandlePrompt, Required: true},
			{ID: "image", Name: "image", Type: HandleImage, Required: false},
		},
		Outputs:    []Output{{ID: "text", Name: "text", Type: HandleText}},
		Category:   CategoryLanguage,
		Params:     []string{"system_prompt", "outputs"},
		Multimodal: true,
	},
	"openai/gpt-5": {
		Name:        "GPT-5",
		Description: "Language model",
		Inputs: []Input{
			{ID: "prompt", Name: "prompt", Type: HandlePrompt, Required: true},
			{ID: "image", Name: "image", Type: HandleImage, Required: false},
		},
		Outputs:  []Output{{ID: "text", Name: "text", Type: HandleText}},
		Category: CategoryLanguage,
		Params:   []string{"system_prompt", "outputs"},
		// The proxy only builds image content parts for gpt-4o; a
		// connected image on gpt-5 still sends a plain string prompt.
	},
	"minimax/speech-02-turbo": {
		Name:        "MiniMax Speech-02",
		Description: "Speech generation",
		Inputs: []Input{
			{ID: "text", Name: "text", Type: HandleText, Required: true},
		},
		Outputs:  []Output{{ID: "audio", Name: "audio", Type: HandleAudio}},
		Category: CategoryVoice,
		Params:   []string{"voice_id"},
		VoiceOptions: []string{
			"English_Trustworth_Man",
			"English_Aussie_Bloke",
			"English_CalmWoman",
			"English_Gentle-voiced_man",
			"English_Graceful_Lady",
			"English_FriendlyPerson",
			"English_Wiselady",
			"English_CaptivatingStoryteller",
			"English_PatientMan",
			"English_Comedian",
		},
	},
	"sync/lipsync-2": {
		Name:        "Lipsync-2",
		Description: "Lipsync video with audio",
		Inputs: []Input{
			{ID: "video", Name: "video", Type: HandleVideo, Required: true},
			{ID: "audio", Name: "audio", Type: HandleAudio, Required: true},
		},
		Outputs:   []Output{{ID: "video", Name: "video", Type: HandleVideo}},
		Category:  CategoryLipsync,
		Params:    []string{"sync_mode"},
		SyncModes: []string{"bounce", "loop"},
	},
}

// Lookup returns the catalog entry for a model id.
func Lookup(id string) (Model, bool) {
	m, ok := Models[id]
	return m, ok
}

// ByCategory returns all models of a category, sorted by id so listings
// are deterministic.
func ByCategory(c Category) []Entry {
	var entries []Entry
	for id, m := range Models {
		if m.Category == c {
			entries = append(entries, Entry{ID: id, Model: m})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// DefaultAspectRatio returns the first declared aspect ratio for a
// model, or "" when the model declares none.
func DefaultAspectRatio(id string) string {
	if m, ok := Models[id]; ok && len(m.AspectRatios) > 0 {
		return m.AspectRatios[0]
	}
	return ""
}

// DefaultVoice returns the first declared voice option, or "" for
// models without voices.
func DefaultVoice(id string) string {
	if m, ok := Models[id]; ok && len(m.VoiceOptions) > 0 {
		return m.VoiceOptions[0]
	}
	return ""
}

// DefaultSyncMode returns the first declared sync mode, or "" for
// models without one.
func DefaultSyncMode(id string) string {
	if m, ok := Models[id]; ok && len(m.SyncModes) > 0 {
		return m.SyncModes[0]
	}
	return ""
}

// OutputType maps a model category to the output classification used
// on executed nodes. Lipsync models produce video.
func (c Category) OutputType() string {
	switch c {
	case CategoryVideo, CategoryLipsync:
		return "video"
	case CategoryLanguage:
		return "text"
	case CategoryVoice:
		return "audio"
	default:
		return "image"
	}
}

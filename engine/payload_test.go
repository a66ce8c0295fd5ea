package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viceroymiami/chatgpt-media-flow/catalog"
	"github.com/viceroymiami/chatgpt-media-flow/flow"
)

func mustModel(t *testing.T, id string) catalog.Model {
	t.Helper()
	m, ok := catalog.Lookup(id)
	require.True(t, ok, id)
	return m
}

func inputs(prompt string, byHandle map[string]string) resolvedInputs {
	r := resolvedInputs{prompt: prompt, byHandle: byHandle}
	if r.byHandle == nil {
		r.byHandle = map[string]string{}
	}
	if img, ok := r.byHandle["image"]; ok {
		r.inputImage = img
	}
	return r
}

func TestBuildPayloadImage(t *testing.T) {
	node := flow.Node{Type: flow.NodeModel, Data: flow.NodeData{AspectRatio: "16:9"}}

	t.Run("prompt and aspect ratio", func(t *testing.T) {
		got, err := buildPayload(node, "black-forest-labs/flux-schnell",
			mustModel(t, "black-forest-labs/flux-schnell"), inputs("a fox", nil))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"prompt": "a fox", "aspect_ratio": "16:9"}, got)
	})

	t.Run("missing prompt skips the node", func(t *testing.T) {
		_, err := buildPayload(node, "black-forest-labs/flux-schnell",
			mustModel(t, "black-forest-labs/flux-schnell"), inputs("", nil))
		assert.ErrorIs(t, err, errInsufficientInput)
	})

	t.Run("aspect ratio defaults to square", func(t *testing.T) {
		bare := flow.Node{Type: flow.NodeModel}
		got, err := buildPayload(bare, "black-forest-labs/flux-schnell",
			mustModel(t, "black-forest-labs/flux-schnell"), inputs("a fox", nil))
		require.NoError(t, err)
		assert.Equal(t, "1:1", got["aspect_ratio"])
	})

	t.Run("single reference image", func(t *testing.T) {
		m := mustModel(t, "black-forest-labs/flux-kontext-max")
		got, err := buildPayload(node, "black-forest-labs/flux-kontext-max", m,
			inputs("restyle it", map[string]string{"input_image": "data:image/png;base64,AAA"}))
		require.NoError(t, err)
		assert.Equal(t, "data:image/png;base64,AAA", got[m.ImageParam])
	})

	t.Run("multi reference images collect into a list", func(t *testing.T) {
		m := mustModel(t, "google/nano-banana")
		require.True(t, m.ImageParamIsList)
		got, err := buildPayload(node, "google/nano-banana", m,
			inputs("merge", map[string]string{"image_1": "u1", "image_2": "u2"}))
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, got[m.ImageParam])
	})

	t.Run("missing required reference images skip the node", func(t *testing.T) {
		m := mustModel(t, "google/nano-banana")
		_, err := buildPayload(node, "google/nano-banana", m, inputs("just text", nil))
		assert.ErrorIs(t, err, errInsufficientInput)
	})
}

func TestBuildPayloadVideo(t *testing.T) {
	node := flow.Node{Type: flow.NodeModel, Data: flow.NodeData{AspectRatio: "16:9"}}

	t.Run("start frame attaches as image", func(t *testing.T) {
		got, err := buildPayload(node, "wan-video/wan-2.2-5b-fast",
			mustModel(t, "wan-video/wan-2.2-5b-fast"),
			inputs("pan across", map[string]string{"image": "https://x/frame.png"}))
		require.NoError(t, err)
		assert.Equal(t, "pan across", got["prompt"])
		assert.Equal(t, "https://x/frame.png", got["image"])
	})

	t.Run("last frame only on supporting models", func(t *testing.T) {
		in := inputs("dolly in", map[string]string{"last_frame_image": "https://x/end.png"})

		got, err := buildPayload(node, "bytedance/seedance-1-lite",
			mustModel(t, "bytedance/seedance-1-lite"), in)
		require.NoError(t, err)
		assert.Equal(t, "https://x/end.png", got["last_frame_image"])

		got, err = buildPayload(node, "wan-video/wan-2.2-5b-fast",
			mustModel(t, "wan-video/wan-2.2-5b-fast"), in)
		require.NoError(t, err)
		_, present := got["last_frame_image"]
		assert.False(t, present)
	})
}

func TestBuildPayloadLanguage(t *testing.T) {
	t.Run("plain user message", func(t *testing.T) {
		node := flow.Node{Type: flow.NodeModel}
		got, err := buildPayload(node, "openai/gpt-4o", mustModel(t, "openai/gpt-4o"),
			inputs("summarize", nil))
		require.NoError(t, err)
		msgs := got["messages"].([]message)
		require.Len(t, msgs, 1)
		assert.Equal(t, "user", msgs[0].Role)
		assert.Equal(t, "summarize", msgs[0].Content)
	})

	t.Run("system prompt prepends", func(t *testing.T) {
		node := flow.Node{Type: flow.NodeModel, Data: flow.NodeData{SystemPrompt: "be brief"}}
		got, err := buildPayload(node, "openai/gpt-4o", mustModel(t, "openai/gpt-4o"),
			inputs("summarize", nil))
		require.NoError(t, err)
		msgs := got["messages"].([]message)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].Role)
		assert.Equal(t, "be brief", msgs[0].Content)
	})

	t.Run("multimodal image becomes a content part", func(t *testing.T) {
		node := flow.Node{Type: flow.NodeModel}
		m := mustModel(t, "openai/gpt-4o")
		require.True(t, m.Multimodal)
		got, err := buildPayload(node, "openai/gpt-4o", m,
			inputs("describe this", map[string]string{"image": "data:image/png;base64,BBB"}))
		require.NoError(t, err)
		msgs := got["messages"].([]message)
		require.Len(t, msgs, 1)
		parts := msgs[0].Content.([]contentPart)
		require.Len(t, parts, 2)
		assert.Equal(t, "text", parts[0].Type)
		assert.Equal(t, "describe this", parts[0].Text)
		assert.Equal(t, "image_url", parts[1].Type)
		assert.Equal(t, "data:image/png;base64,BBB", parts[1].ImageURL.URL)
	})

	t.Run("no image keeps plain string content", func(t *testing.T) {
		node := flow.Node{Type: flow.NodeModel}
		got, err := buildPayload(node, "openai/gpt-4o", mustModel(t, "openai/gpt-4o"),
			inputs("describe this", nil))
		require.NoError(t, err)
		msgs := got["messages"].([]message)
		require.Len(t, msgs, 1)
		assert.Equal(t, "describe this", msgs[0].Content)
	})

	t.Run("non-multimodal model keeps a plain prompt despite an image", func(t *testing.T) {
		node := flow.Node{Type: flow.NodeModel}
		m := mustModel(t, "openai/gpt-5")
		require.False(t, m.Multimodal)
		got, err := buildPayload(node, "openai/gpt-5", m,
			inputs("describe this", map[string]string{"image": "data:image/png;base64,BBB"}))
		require.NoError(t, err)
		msgs := got["messages"].([]message)
		require.Len(t, msgs, 1)
		assert.Equal(t, "describe this", msgs[0].Content)
	})
}

func TestBuildPayloadVoice(t *testing.T) {
	t.Run("explicit voice", func(t *testing.T) {
		node := flow.Node{Type: flow.NodeModel, Data: flow.NodeData{VoiceID: "Deep_Voice_Man"}}
		got, err := buildPayload(node, "minimax/speech-02-turbo",
			mustModel(t, "minimax/speech-02-turbo"), inputs("hello there", nil))
		require.NoError(t, err)
		assert.Equal(t, "hello there", got["text"])
		assert.Equal(t, "Deep_Voice_Man", got["voice_id"])
	})

	t.Run("voice falls back to catalog default", func(t *testing.T) {
		node := flow.Node{Type: flow.NodeModel}
		got, err := buildPayload(node, "minimax/speech-02-turbo",
			mustModel(t, "minimax/speech-02-turbo"), inputs("hello there", nil))
		require.NoError(t, err)
		assert.Equal(t, catalog.DefaultVoice("minimax/speech-02-turbo"), got["voice_id"])
	})
}

func TestBuildPayloadLipsync(t *testing.T) {
	node := flow.Node{Type: flow.NodeModel}
	m := mustModel(t, "sync/lipsync-2")

	t.Run("runs without a prompt", func(t *testing.T) {
		got, err := buildPayload(node, "sync/lipsync-2", m,
			inputs("", map[string]string{"video": "https://x/v.mp4", "audio": "https://x/a.mp3"}))
		require.NoError(t, err)
		assert.Equal(t, "https://x/v.mp4", got["video"])
		assert.Equal(t, "https://x/a.mp3", got["audio"])
		assert.Equal(t, catalog.DefaultSyncMode("sync/lipsync-2"), got["sync_mode"])
	})

	t.Run("requires both media inputs", func(t *testing.T) {
		_, err := buildPayload(node, "sync/lipsync-2", m,
			inputs("", map[string]string{"video": "https://x/v.mp4"}))
		assert.ErrorIs(t, err, errInsufficientInput)

		_, err = buildPayload(node, "sync/lipsync-2", m,
			inputs("", map[string]string{"audio": "https://x/a.mp3"}))
		assert.ErrorIs(t, err, errInsufficientInput)
	})

	t.Run("explicit sync mode wins", func(t *testing.T) {
		loop := flow.Node{Type: flow.NodeModel, Data: flow.NodeData{SyncMode: "loop"}}
		got, err := buildPayload(loop, "sync/lipsync-2", m,
			inputs("", map[string]string{"video": "v", "audio": "a"}))
		require.NoError(t, err)
		assert.Equal(t, "loop", got["sync_mode"])
	})
}

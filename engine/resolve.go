package engine

import (
	"strconv"
	"strings"

	"github.com/viceroymiami/chatgpt-media-flow/flow"
)

// Outputs is the resolved-output record a node publishes for its
// downstream consumers. It lives only for the duration of one execution
// pass and is never persisted.
type Outputs struct {
	Prompt string

	Image  string
	Images []string

	Video  string
	Videos []string

	Text  string
	Texts []string

	Audio  string
	Audios []string
}

// resolvedInputs is everything gathered for one node about to execute:
// values bucketed by the target handle they feed, plus the convenience
// scalars for the common cases.
type resolvedInputs struct {
	byHandle   map[string]string
	prompt     string
	inputImage string
}

func (r resolvedInputs) handle(id string) string {
	return r.byHandle[id]
}

func (r resolvedInputs) has(id string) bool {
	return r.byHandle[id] != ""
}

// sourceIndex extracts the 1-based index a source handle encodes
// (image_2 -> 2); 0 when the handle carries no index.
func sourceIndex(handle string) int {
	i := strings.LastIndex(handle, "_")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(handle[i+1:])
	if err != nil {
		return 0
	}
	return n
}

// pickImage selects the image a dependency supplies: with multiple
// images and an indexed source handle, the matching element; otherwise
// the first image; otherwise the singular field.
func pickImage(out *Outputs, sourceHandle string) string {
	if len(out.Images) > 1 {
		if idx := sourceIndex(sourceHandle); idx >= 1 && idx <= len(out.Images) {
			return out.Images[idx-1]
		}
	}
	if len(out.Images) > 0 {
		return out.Images[0]
	}
	return out.Image
}

// resolveInputs gathers the already-computed outputs of a node's direct
// dependencies and buckets them by the target handle they feed. Edge
// iteration order decides last-writer-wins for the (invariant-excluded)
// case of multiple edges on one handle.
func resolveInputs(deps []flow.Dependency, produced map[string]*Outputs) resolvedInputs {
	r := resolvedInputs{byHandle: make(map[string]string)}

	for _, dep := range deps {
		src := produced[dep.Source]
		if src == nil {
			continue
		}

		switch dep.TargetHandle {
		case "prompt", "text":
			if src.Prompt != "" {
				r.prompt = src.Prompt
			} else if src.Text != "" {
				r.prompt = src.Text
			}

		case "image", "input_image", "image_1", "image_2":
			img := pickImage(src, dep.SourceHandle)
			r.byHandle[dep.TargetHandle] = img
			if dep.TargetHandle == "image" || dep.TargetHandle == "input_image" {
				r.inputImage = img
			}

		case "last_frame_image":
			r.byHandle[dep.TargetHandle] = pickImage(src, dep.SourceHandle)

		case "video":
			if len(src.Videos) > 0 {
				r.byHandle[dep.TargetHandle] = src.Videos[0]
			} else {
				r.byHandle[dep.TargetHandle] = src.Video
			}

		case "audio":
			if len(src.Audios) > 0 {
				r.byHandle[dep.TargetHandle] = src.Audios[0]
			} else {
				r.byHandle[dep.TargetHandle] = src.Audio
			}
		}
	}
	return r
}

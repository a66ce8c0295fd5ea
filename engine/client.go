// Package engine drives one execution pass over the workflow graph: it
// resolves each node's inputs from its dependencies, assembles the
// model-specific request payload, fans out the node's parallel
// inference calls, and reconciles results back into the board.
package engine

import "context"

// Client is the inference call contract. Invoke sends one request for
// the given model and returns the normalized output list (see
// NormalizeOutput). Implementations must be safe for concurrent use;
// the engine issues a node's slot calls in parallel.
type Client interface {
	Invoke(ctx context.Context, model string, input map[string]any) ([]string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, model string, input map[string]any) ([]string, error)

func (f ClientFunc) Invoke(ctx context.Context, model string, input map[string]any) ([]string, error) {
	return f(ctx, model, input)
}

// NormalizeOutput flattens the shapes an inference backend may return
// into a list of strings: a bare value becomes a one-element list, a
// list is kept, nested one-level lists are unwrapped, and non-string
// scalars are stringified.
func NormalizeOutput(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, NormalizeOutput(item)...)
		}
		return out
	default:
		return []string{stringify(v)}
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return toJSONString(v)
}

package flow

import "fmt"

// Dependency describes one incoming edge of a node, as consumed by the
// input resolver: which node feeds it, through which source handle,
// into which target handle.
type Dependency struct {
	Source       string
	SourceHandle string
	TargetHandle string
}

// ErrCycleDetected is returned when the graph contains a dependency
// cycle. The scheduler reports cycles instead of silently producing a
// truncated order.
type ErrCycleDetected struct {
	NodeID string
}

func (e *ErrCycleDetected) Error() string {
	return fmt.Sprintf("dependency cycle detected at node %s", e.NodeID)
}

// Dependencies builds the reverse-adjacency map from the edge list:
// target node id -> the edges feeding it, in edge order.
func Dependencies(edges []Edge) map[string][]Dependency {
	deps := make(map[string][]Dependency)
	for _, e := range edges {
		deps[e.Target] = append(deps[e.Target], Dependency{
			Source:       e.Source,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		})
	}
	return deps
}

// Schedule computes a deterministic execution order over all nodes via
// depth-first visitation: every node appears after all nodes it depends
// on, nodes without dependencies keep their collection order relative
// to each other, and every node is scheduled exactly once (disconnected
// components included).
func Schedule(nodes []Node, edges []Edge) ([]string, error) {
	deps := Dependencies(edges)

	order := make([]string, 0, len(nodes))
	visited := make(map[string]bool, len(nodes))
	onStack := make(map[string]bool)

	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		if onStack[id] {
			return &ErrCycleDetected{NodeID: id}
		}
		onStack[id] = true
		for _, dep := range deps[id] {
			if err := visit(dep.Source); err != nil {
				return err
			}
		}
		delete(onStack, id)
		visited[id] = true
		order = append(order, id)
		return nil
	}

	for _, n := range nodes {
		if err := visit(n.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

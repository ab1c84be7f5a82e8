package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStageID is returned by [Graph.Validate] when a node has an
	// empty stage ID.
	ErrInvalidStageID = errors.New("stage ID must not be empty")

	// ErrDuplicateStageID is returned by [Graph.Validate] when two nodes share
	// a stage ID.
	ErrDuplicateStageID = errors.New("duplicate stage ID")

	// ErrUnknownDependency is returned by [Graph.Validate] when a node depends
	// on a stage that does not exist in the graph.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrForwardDependency is returned by [Graph.Validate] when a node depends
	// on a stage created after it, breaking the creation-order invariant.
	ErrForwardDependency = errors.New("dependency created after dependent")

	// ErrRootDependency is returned by [Graph.Validate] when a stage depends
	// on the synthetic root node, which never takes part in the layout.
	ErrRootDependency = errors.New("dependency on the graph root")
)

// IsLive reports whether the graph may still change.
func (g *Graph) IsLive() bool { return g.Finished == 0 }

// Stages returns the layout-relevant nodes: every raw node after the
// synthetic root. It returns nil for an empty graph.
func (g *Graph) Stages() []Node {
	if len(g.Nodes) <= 1 {
		return nil
	}
	return g.Nodes[1:]
}

// Root returns the synthetic root node, if the graph has one.
func (g *Graph) Root() (Node, bool) {
	if len(g.Nodes) == 0 {
		return Node{}, false
	}
	return g.Nodes[0], true
}

// Node returns the node with the given stage ID.
func (g *Graph) Node(stageID string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.StageID == stageID {
			return n, true
		}
	}
	return Node{}, false
}

// NodeCount returns the number of raw nodes, including the root.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// MaxTimestamp returns the right edge of the time axis: now while the graph
// is live, the finish time afterwards.
func (g *Graph) MaxTimestamp(now int64) int64 {
	if g.IsLive() {
		return now
	}
	return g.Finished
}

// Duration returns the span of the time axis in milliseconds.
func (g *Graph) Duration(now int64) int64 {
	return g.MaxTimestamp(now) - g.Created
}

// FindDepIDs returns the transitive ancestors of a stage: every stage
// reachable through dependency edges. The stage itself is not included unless
// it is reachable from itself. Unknown stage IDs yield an empty set.
func (g *Graph) FindDepIDs(stageID string) map[string]struct{} {
	idx := g.lookup()
	deps := make(map[string]struct{})
	i, ok := idx[stageID]
	if !ok {
		return deps
	}

	stack := append([]string(nil), g.Nodes[i].Dependencies...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := deps[id]; seen {
			continue
		}
		deps[id] = struct{}{}
		if j, ok := idx[id]; ok {
			stack = append(stack, g.Nodes[j].Dependencies...)
		}
	}
	return deps
}

// Validate checks stage IDs and the creation-order invariant: every
// dependency must name a stage that appears earlier in the node sequence.
func (g *Graph) Validate() error {
	seen := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.StageID == "" {
			return fmt.Errorf("node %d: %w", i, ErrInvalidStageID)
		}
		if _, dup := seen[n.StageID]; dup {
			return fmt.Errorf("stage %s: %w", n.StageID, ErrDuplicateStageID)
		}
		seen[n.StageID] = i
	}
	for i, n := range g.Nodes {
		for _, dep := range n.Dependencies {
			j, ok := seen[dep]
			if !ok {
				return fmt.Errorf("stage %s depends on %s: %w", n.StageID, dep, ErrUnknownDependency)
			}
			if j >= i {
				return fmt.Errorf("stage %s depends on %s: %w", n.StageID, dep, ErrForwardDependency)
			}
			if j == 0 {
				return fmt.Errorf("stage %s depends on %s: %w", n.StageID, dep, ErrRootDependency)
			}
		}
	}
	return nil
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		ID:         g.ID,
		FunctionID: g.FunctionID,
		Created:    g.Created,
		Finished:   g.Finished,
		Nodes:      make([]Node, len(g.Nodes)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.clone()
	}
	return out
}

// lookup builds a stage ID -> position index.
func (g *Graph) lookup() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n.StageID] = i
	}
	return idx
}

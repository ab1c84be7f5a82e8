package layout

import "github.com/matzehuels/flowlane/pkg/graph"

// Highlight returns the selected stage together with all of its transitive
// dependencies. The set is empty when nothing is selected, when the stage no
// longer exists, or when the synthetic root is selected.
func Highlight(g *graph.Graph, selected string) map[string]struct{} {
	set := make(map[string]struct{})
	if selected == "" {
		return set
	}
	n, ok := g.Node(selected)
	if !ok || n.State == graph.StateGraph {
		return set
	}
	set = g.FindDepIDs(selected)
	set[selected] = struct{}{}
	return set
}

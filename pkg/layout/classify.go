package layout

import (
	"cmp"
	"slices"

	"github.com/matzehuels/flowlane/pkg/graph"
)

// Partition is the result of [Classify].
type Partition struct {
	// Pending holds stages that have not started, in graph order.
	Pending []graph.Node
	// Active holds every other stage, stably sorted by Created.
	Active []graph.Node
}

// Classify partitions stages into pending and active. The synthetic root is
// not expected in stages; pass [graph.Graph.Stages].
func Classify(stages []graph.Node) Partition {
	var p Partition
	for _, n := range stages {
		if n.IsPending() {
			p.Pending = append(p.Pending, n)
		} else {
			p.Active = append(p.Active, n)
		}
	}
	slices.SortStableFunc(p.Active, func(a, b graph.Node) int {
		return cmp.Compare(a.Created, b.Created)
	})
	return p
}

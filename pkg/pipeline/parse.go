package pipeline

import (
	"context"
	"io"
	"os"

	flerrors "github.com/matzehuels/flowlane/pkg/errors"
	"github.com/matzehuels/flowlane/pkg/graph"
)

// Load reads and validates a graph document. A path of "-" reads r.
func Load(ctx context.Context, path string, r io.Reader) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "-" {
		g, err := graph.ReadGraph(r)
		if err != nil {
			return nil, flerrors.Wrap(flerrors.ErrCodeInvalidGraph, err, "read graph from stdin")
		}
		return g, nil
	}

	if err := flerrors.ValidatePath(path); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, flerrors.New(flerrors.ErrCodeFileNotFound, "graph file not found: %s", path)
	}
	g, err := graph.ReadGraphFile(path)
	if err != nil {
		return nil, flerrors.Wrap(flerrors.ErrCodeInvalidGraph, err, "read graph %s", path)
	}
	return g, nil
}

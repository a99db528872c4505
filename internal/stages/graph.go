package stages

import (
	"context"
	"log"

	"codeatlas/internal/artifact"
	"codeatlas/internal/codegraph"
	"codeatlas/internal/extract"
)

// Graph assembles extraction results into a finalized code graph. The whole
// graph is rebuilt from scratch on every run; finalization either completes
// or leaves nothing behind.
type Graph struct{}

func (Graph) Run(ctx context.Context, in artifact.GraphIn) (*artifact.Graph, error) {
	g := codegraph.New()
	if err := extract.Populate(g, in.Results); err != nil {
		return nil, err
	}
	if err := g.Finalize(ctx); err != nil {
		return nil, err
	}
	out, err := artifact.FlattenGraph(in.Repo, g)
	if err != nil {
		return nil, err
	}
	log.Printf("Graph: %d symbols, %d edges, %d unresolved", out.Stats.Symbols, out.Stats.Edges, out.Stats.Unresolved)
	return out, nil
}

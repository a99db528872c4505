package artifact

import (
	"context"
	"fmt"

	"codeatlas/internal/codegraph"
	"codeatlas/internal/extract"
)

// GraphIn carries extraction output forward into graph assembly.
type GraphIn struct {
	Repo    string                `json:"repo"`
	Results []*extract.FileResult `json:"results"`
}

// Graph is the stored form of a finalized code graph. Symbols and edges keep
// their insertion order, which is what lets Rebuild reproduce the exact same
// IDs and topological order on the way back up.
type Graph struct {
	Schema      int                       `json:"schema_version"`
	Repo        string                    `json:"repo"`
	Symbols     []codegraph.Symbol        `json:"symbols"`
	Edges       []codegraph.Edge          `json:"edges"`
	Unresolved  []codegraph.UnresolvedRef `json:"unresolved,omitempty"`
	CycleBreaks []codegraph.CycleBreak    `json:"cycle_breaks,omitempty"`
	Order       []int                     `json:"order"`
	Stats       codegraph.Stats           `json:"stats"`
}

// FlattenGraph snapshots a finalized graph into its storable form.
func FlattenGraph(repo string, g *codegraph.Graph) (*Graph, error) {
	symbols, err := g.Symbols()
	if err != nil {
		return nil, err
	}
	edges, err := g.Edges()
	if err != nil {
		return nil, err
	}
	unresolved, err := g.Unresolved()
	if err != nil {
		return nil, err
	}
	breaks, err := g.CycleBreaks()
	if err != nil {
		return nil, err
	}
	ordered, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	stats, err := g.Stats()
	if err != nil {
		return nil, err
	}
	order := make([]int, len(ordered))
	for i, s := range ordered {
		order[i] = s.ID
	}
	return &Graph{
		Schema:      SchemaVersion,
		Repo:        repo,
		Symbols:     symbols,
		Edges:       edges,
		Unresolved:  unresolved,
		CycleBreaks: breaks,
		Order:       order,
		Stats:       stats,
	}, nil
}

// Rebuild rehydrates a queryable graph from the stored artifact. Symbols are
// replayed in stored order so every one gets back its original ID; the replay
// is verified and a mismatch means the artifact was tampered with or built by
// an incompatible version.
func (a *Graph) Rebuild(ctx context.Context) (*codegraph.Graph, error) {
	g := codegraph.New()
	for _, s := range a.Symbols {
		id, err := g.AddSymbol(s)
		if err != nil {
			return nil, err
		}
		if id != s.ID {
			return nil, fmt.Errorf("artifact: graph symbol %q replayed as id %d, stored as %d", s.Name, id, s.ID)
		}
	}
	for _, e := range a.Edges {
		if err := g.AddEdge(e.From, e.To, e.Kind); err != nil {
			return nil, err
		}
	}
	if err := g.Finalize(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

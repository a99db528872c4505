package artifact

import (
	"context"
	"reflect"
	"testing"

	"codeatlas/internal/codegraph"
)

func buildSampleGraph(t *testing.T) *codegraph.Graph {
	t.Helper()
	g := codegraph.New()
	ids := make(map[string]int)
	for _, s := range []codegraph.Symbol{
		{Name: "pkg.a", Kind: codegraph.SymbolModule, Path: "pkg/a.py", StartLine: 1, EndLine: 10},
		{Name: "pkg.a.f", Kind: codegraph.SymbolFunction, Path: "pkg/a.py", StartLine: 3, EndLine: 5},
		{Name: "pkg.b", Kind: codegraph.SymbolModule, Path: "pkg/b.py", StartLine: 1, EndLine: 4},
		{Name: "pkg.b.g", Kind: codegraph.SymbolFunction, Path: "pkg/b.py", StartLine: 1, EndLine: 2},
	} {
		id, err := g.AddSymbol(s)
		if err != nil {
			t.Fatalf("AddSymbol(%s): %v", s.Name, err)
		}
		ids[s.Name] = id
	}
	if err := g.AddEdge(ids["pkg.a.f"], ids["pkg.b.g"], codegraph.EdgeCalls); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := g.AddRef(ids["pkg.a"], "missing.thing", codegraph.EdgeImports); err != nil {
		t.Fatalf("AddRef: %v", err)
	}
	if err := g.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return g
}

func TestGraphRoundTrip(t *testing.T) {
	g := buildSampleGraph(t)

	flat, err := FlattenGraph("demo", g)
	if err != nil {
		t.Fatalf("FlattenGraph: %v", err)
	}
	if flat.Stats.Symbols != 4 || flat.Stats.Edges != 1 {
		t.Fatalf("stats = %+v", flat.Stats)
	}
	if len(flat.Unresolved) != 1 || flat.Unresolved[0].Target != "missing.thing" {
		t.Fatalf("unresolved = %+v", flat.Unresolved)
	}
	if len(flat.Order) != len(flat.Symbols) {
		t.Fatalf("order has %d entries for %d symbols", len(flat.Order), len(flat.Symbols))
	}

	rebuilt, err := flat.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	wantSyms, _ := g.Symbols()
	gotSyms, err := rebuilt.Symbols()
	if err != nil {
		t.Fatalf("rebuilt.Symbols: %v", err)
	}
	if !reflect.DeepEqual(wantSyms, gotSyms) {
		t.Fatalf("symbols diverged after rebuild:\nwant %+v\ngot  %+v", wantSyms, gotSyms)
	}

	wantOrder, _ := g.TopologicalOrder()
	gotOrder, err := rebuilt.TopologicalOrder()
	if err != nil {
		t.Fatalf("rebuilt.TopologicalOrder: %v", err)
	}
	if !reflect.DeepEqual(wantOrder, gotOrder) {
		t.Fatalf("topological order diverged after rebuild")
	}

	wantN, _ := g.Neighbors(1, codegraph.DirOutgoing)
	gotN, err := rebuilt.Neighbors(1, codegraph.DirOutgoing)
	if err != nil {
		t.Fatalf("rebuilt.Neighbors: %v", err)
	}
	if !reflect.DeepEqual(wantN, gotN) {
		t.Fatalf("neighbors diverged after rebuild")
	}
}

func TestGraphRebuild_RejectsCorruptIDs(t *testing.T) {
	g := buildSampleGraph(t)
	flat, err := FlattenGraph("demo", g)
	if err != nil {
		t.Fatalf("FlattenGraph: %v", err)
	}
	flat.Symbols[2].ID = 99
	if _, err := flat.Rebuild(context.Background()); err == nil {
		t.Fatal("expected rebuild of corrupted artifact to fail")
	}
}

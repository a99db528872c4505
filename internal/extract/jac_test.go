package extract

import (
	"context"
	"testing"

	"codeatlas/internal/codegraph"
	"codeatlas/internal/tester"
)

const jacSample = `import {*} with "./social.jac";

node person {
    has name;
    can greet {
        report "hi";
    }
}

edge friend {
    has since;
}

walker build_graph {
    can setup with entry {
        spawn node::person;
    }
}`

func TestJacExtract_Archetypes(t *testing.T) {
	res, err := NewJacExtractor().Extract(context.Background(), "graph/people.jac", []byte(jacSample))
	tester.NoErr(t, err)

	tester.Len(t, res.Symbols, 6)
	tester.Eq(t, res.Symbols[0].Name, "graph.people")
	tester.Eq(t, res.Symbols[0].Kind, codegraph.SymbolModule)

	person := findSym(t, res, "graph.people.person")
	tester.Eq(t, res.Symbols[person].Kind, codegraph.SymbolClass)
	tester.Eq(t, res.Symbols[person].StartLine, 3)
	tester.Eq(t, res.Symbols[person].EndLine, 8)
	tester.Eq(t, res.Symbols[person].Signature, "node person")

	greet := findSym(t, res, "graph.people.person.greet")
	tester.Eq(t, res.Symbols[greet].Kind, codegraph.SymbolFunction)
	tester.Eq(t, res.Symbols[greet].StartLine, 5)
	tester.Eq(t, res.Symbols[greet].EndLine, 7)

	friend := findSym(t, res, "graph.people.friend")
	tester.Eq(t, res.Symbols[friend].Kind, codegraph.SymbolClass)

	walkerIdx := findSym(t, res, "graph.people.build_graph")
	tester.Eq(t, res.Symbols[walkerIdx].Kind, codegraph.SymbolFunction)
	tester.Eq(t, res.Symbols[walkerIdx].EndLine, 18)

	setup := findSym(t, res, "graph.people.build_graph.setup")
	tester.True(t, hasLocalEdge(res, person, greet, codegraph.EdgeReferences))
	tester.True(t, hasLocalEdge(res, walkerIdx, setup, codegraph.EdgeReferences))
}

func TestJacExtract_Imports(t *testing.T) {
	res, err := NewJacExtractor().Extract(context.Background(), "graph/people.jac", []byte(jacSample))
	tester.NoErr(t, err)

	tester.Eq(t, res.Imports, []string{"social"})
	tester.True(t, hasRef(res, 0, "social", codegraph.EdgeImports))
}

func TestJacExtract_ParentArchetypes(t *testing.T) {
	src := "node city:place {\n    has name;\n}\n"
	res, err := NewJacExtractor().Extract(context.Background(), "map.jac", []byte(src))
	tester.NoErr(t, err)

	city := findSym(t, res, "map.city")
	tester.True(t, hasRef(res, city, "place", codegraph.EdgeInherits))
}

func TestJacDeclName(t *testing.T) {
	name, parents := jacDeclName("node city:place {", "node")
	tester.Eq(t, name, "city")
	tester.Eq(t, parents, []string{"place"})

	name, parents = jacDeclName("can compute(a, b);", "can")
	tester.Eq(t, name, "compute")
	tester.Len(t, parents, 0)
}

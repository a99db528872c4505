package extract

import (
	"context"
	"testing"

	"codeatlas/internal/codegraph"
	"codeatlas/internal/tester"
)

const pySample = `"""Greeting helpers."""
import os
from pkg import util


class Base:
    pass


class Greeter(Base):
    """Says hello."""

    def greet(self, name):
        return format_name(name)


def format_name(name):
    """Normalize a name."""
    return name.strip()


def main():
    g = Greeter()
    g.greet("x")
    util.helper()
`

func findSym(t *testing.T, res *FileResult, name string) int {
	t.Helper()
	for i, s := range res.Symbols {
		if s.Name == name {
			return i
		}
	}
	t.Fatalf("symbol %q not found in %v", name, res.Symbols)
	return -1
}

func hasRef(res *FileResult, from int, target string, kind codegraph.EdgeKind) bool {
	for _, r := range res.Refs {
		if r.From == from && r.Target == target && r.Kind == kind {
			return true
		}
	}
	return false
}

func hasLocalEdge(res *FileResult, from, to int, kind codegraph.EdgeKind) bool {
	for _, e := range res.Edges {
		if e.From == from && e.To == to && e.Kind == kind {
			return true
		}
	}
	return false
}

func TestPythonExtract_SymbolsAndKinds(t *testing.T) {
	res, err := NewPythonExtractor().Extract(context.Background(), "app/greet.py", []byte(pySample))
	tester.NoErr(t, err)

	tester.Len(t, res.Symbols, 6)
	mod := findSym(t, res, "app.greet")
	tester.Eq(t, res.Symbols[mod].Kind, codegraph.SymbolModule)
	tester.Eq(t, res.Symbols[mod].StartLine, 1)

	base := findSym(t, res, "app.greet.Base")
	tester.Eq(t, res.Symbols[base].Kind, codegraph.SymbolClass)
	tester.Eq(t, res.Symbols[base].StartLine, 6)

	greeter := findSym(t, res, "app.greet.Greeter")
	tester.Eq(t, res.Symbols[greeter].StartLine, 10)
	tester.Eq(t, res.Symbols[greeter].EndLine, 14)
	tester.Eq(t, res.Symbols[greeter].Doc, "Says hello.")

	greet := findSym(t, res, "app.greet.Greeter.greet")
	tester.Eq(t, res.Symbols[greet].Kind, codegraph.SymbolFunction)
	tester.Eq(t, res.Symbols[greet].Signature, "def greet(self, name)")

	format := findSym(t, res, "app.greet.format_name")
	tester.Eq(t, res.Symbols[format].Doc, "Normalize a name.")
	findSym(t, res, "app.greet.main")
}

func TestPythonExtract_LocalEdges(t *testing.T) {
	res, err := NewPythonExtractor().Extract(context.Background(), "app/greet.py", []byte(pySample))
	tester.NoErr(t, err)

	base := findSym(t, res, "app.greet.Base")
	greeter := findSym(t, res, "app.greet.Greeter")
	greet := findSym(t, res, "app.greet.Greeter.greet")
	format := findSym(t, res, "app.greet.format_name")
	main := findSym(t, res, "app.greet.main")

	tester.True(t, hasLocalEdge(res, greeter, greet, codegraph.EdgeReferences), "class should reference its method")
	tester.True(t, hasLocalEdge(res, greeter, base, codegraph.EdgeInherits), "same-file base class resolves locally")
	tester.True(t, hasLocalEdge(res, greet, format, codegraph.EdgeCalls), "same-file call resolves locally")
	tester.True(t, hasLocalEdge(res, main, greeter, codegraph.EdgeCalls), "constructor call resolves locally")
}

func TestPythonExtract_ImportsAndCrossFileRefs(t *testing.T) {
	res, err := NewPythonExtractor().Extract(context.Background(), "app/greet.py", []byte(pySample))
	tester.NoErr(t, err)

	tester.Eq(t, res.Imports, []string{"os", "pkg"})
	tester.True(t, hasRef(res, 0, "os", codegraph.EdgeImports))
	tester.True(t, hasRef(res, 0, "pkg", codegraph.EdgeImports))

	main := findSym(t, res, "app.greet.main")
	tester.True(t, hasRef(res, main, "util.helper", codegraph.EdgeCalls), "cross-module call stays a ref")
	tester.False(t, hasRef(res, main, "Greeter", codegraph.EdgeCalls), "localized ref must not survive")
}

func TestPythonExtract_SyntaxErrorFails(t *testing.T) {
	_, err := NewPythonExtractor().Extract(context.Background(), "bad.py", []byte("def broken(:\n"))
	tester.Err(t, err)
	tester.Contains(t, err.Error(), "syntax error")
}

func TestPythonExtract_DecoratedAndNested(t *testing.T) {
	src := `@register
def outer():
    def inner():
        return 1
    return inner()
`
	res, err := NewPythonExtractor().Extract(context.Background(), "deco.py", []byte(src))
	tester.NoErr(t, err)

	outer := findSym(t, res, "deco.outer")
	inner := findSym(t, res, "deco.outer.inner")
	tester.Eq(t, res.Symbols[outer].Kind, codegraph.SymbolFunction)
	tester.True(t, hasLocalEdge(res, outer, inner, codegraph.EdgeCalls))
}

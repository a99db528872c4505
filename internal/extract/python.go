package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"codeatlas/internal/codegraph"
)

// PythonExtractor reads module, class and function declarations plus their
// import, call and inheritance relationships from a Python source file.
type PythonExtractor struct{}

func NewPythonExtractor() *PythonExtractor { return &PythonExtractor{} }

func (e *PythonExtractor) Language() string { return "python" }

func (e *PythonExtractor) Extensions() []string { return []string{".py"} }

func (e *PythonExtractor) Extract(ctx context.Context, path string, src []byte) (*FileResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("python: parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("python: %s: syntax error", path)
	}

	res := &FileResult{Path: path, Language: e.Language()}
	mod := moduleName(path)
	res.Symbols = append(res.Symbols, codegraph.Symbol{
		Name:      mod,
		Kind:      codegraph.SymbolModule,
		Path:      path,
		StartLine: 1,
		EndLine:   bytes.Count(src, []byte("\n")) + 1,
	})

	w := &pyWalker{res: res, src: src}
	w.walk(root, mod, 0)
	localizeRefs(res)
	return res, nil
}

type pyWalker struct {
	res *FileResult
	src []byte
}

// walk descends the syntax tree keeping track of the nearest enclosing
// symbol; calls and imports found along the way are attributed to it.
func (w *pyWalker) walk(n *sitter.Node, prefix string, owner int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "decorated_definition":
			if def := c.ChildByFieldName("definition"); def != nil {
				w.declaration(def, prefix, owner)
			}
		case "class_definition", "function_definition":
			w.declaration(c, prefix, owner)
		case "import_statement":
			w.importNames(c)
		case "import_from_statement":
			w.importFrom(c)
		case "call":
			if target := pyCallTarget(c, w.src); target != "" {
				w.res.Refs = append(w.res.Refs, Ref{From: owner, Target: target, Kind: codegraph.EdgeCalls})
			}
			w.walk(c, prefix, owner)
		default:
			w.walk(c, prefix, owner)
		}
	}
}

func (w *pyWalker) declaration(n *sitter.Node, prefix string, owner int) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(w.src)
	qualified := prefix + "." + name

	sym := codegraph.Symbol{
		Name:      qualified,
		Path:      w.res.Path,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}

	switch n.Type() {
	case "class_definition":
		sym.Kind = codegraph.SymbolClass
		sym.Signature = "class " + name
	case "function_definition":
		sym.Kind = codegraph.SymbolFunction
		sig := "def " + name
		if params := n.ChildByFieldName("parameters"); params != nil {
			sig = "def " + name + params.Content(w.src)
		}
		sym.Signature = sig
	default:
		return
	}

	if body := n.ChildByFieldName("body"); body != nil {
		sym.Doc = pyDocstring(body, w.src)
	}

	idx := len(w.res.Symbols)
	w.res.Symbols = append(w.res.Symbols, sym)

	if w.res.Symbols[owner].Kind == codegraph.SymbolClass {
		w.res.Edges = append(w.res.Edges, LocalEdge{From: owner, To: idx, Kind: codegraph.EdgeReferences})
	}

	if n.Type() == "class_definition" {
		if bases := n.ChildByFieldName("superclasses"); bases != nil {
			for j := 0; j < int(bases.NamedChildCount()); j++ {
				b := bases.NamedChild(j)
				switch b.Type() {
				case "identifier", "attribute":
					w.res.Refs = append(w.res.Refs, Ref{From: idx, Target: b.Content(w.src), Kind: codegraph.EdgeInherits})
				}
			}
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		w.walk(body, qualified, idx)
	}
}

func (w *pyWalker) importNames(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		var name string
		switch c.Type() {
		case "dotted_name":
			name = c.Content(w.src)
		case "aliased_import":
			if d := c.ChildByFieldName("name"); d != nil {
				name = d.Content(w.src)
			}
		}
		if name != "" {
			w.addImport(name)
		}
	}
}

func (w *pyWalker) importFrom(n *sitter.Node) {
	if m := n.ChildByFieldName("module_name"); m != nil {
		if name := strings.Trim(m.Content(w.src), "."); name != "" {
			w.addImport(name)
		}
	}
}

func (w *pyWalker) addImport(name string) {
	w.res.Imports = append(w.res.Imports, name)
	w.res.Refs = append(w.res.Refs, Ref{From: 0, Target: name, Kind: codegraph.EdgeImports})
}

// pyCallTarget extracts the callee name of a call expression. Attribute
// chains keep their dotted form so cross-module calls like util.helper()
// stay resolvable; self/cls receivers are stripped.
func pyCallTarget(call *sitter.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "attribute":
		t := fn.Content(src)
		t = strings.TrimPrefix(t, "self.")
		t = strings.TrimPrefix(t, "cls.")
		if strings.ContainsAny(t, "()[] \n\t") {
			return ""
		}
		return t
	}
	return ""
}

// pyDocstring returns the first line of a leading docstring, if any.
func pyDocstring(body *sitter.Node, src []byte) string {
	if body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	doc := str.Content(src)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		doc = strings.TrimPrefix(doc, q)
		doc = strings.TrimSuffix(doc, q)
	}
	for _, line := range strings.Split(doc, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

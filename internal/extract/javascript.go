package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"codeatlas/internal/codegraph"
)

// JavaScriptExtractor reads classes, functions and imports from JavaScript
// sources, including arrow functions bound to const declarations.
type JavaScriptExtractor struct{}

func NewJavaScriptExtractor() *JavaScriptExtractor { return &JavaScriptExtractor{} }

func (e *JavaScriptExtractor) Language() string { return "javascript" }

func (e *JavaScriptExtractor) Extensions() []string { return []string{".js", ".mjs", ".cjs", ".jsx"} }

func (e *JavaScriptExtractor) Extract(ctx context.Context, path string, src []byte) (*FileResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("javascript: parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("javascript: %s: syntax error", path)
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

	w := &jsWalker{res: res, src: src}
	w.walk(root, mod, 0)
	localizeRefs(res)
	return res, nil
}

type jsWalker struct {
	res *FileResult
	src []byte
}

func (w *jsWalker) walk(n *sitter.Node, prefix string, owner int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "export_statement":
			if decl := c.ChildByFieldName("declaration"); decl != nil {
				w.statement(decl, prefix, owner)
			}
		case "import_statement":
			w.importSource(c)
		default:
			w.statement(c, prefix, owner)
		}
	}
}

func (w *jsWalker) statement(c *sitter.Node, prefix string, owner int) {
	switch c.Type() {
	case "class_declaration":
		w.class(c, prefix)
	case "function_declaration", "generator_function_declaration":
		w.function(c, prefix)
	case "lexical_declaration", "variable_declaration":
		w.variables(c, prefix, owner)
	case "call_expression":
		if target := jsCallTarget(c, w.src); target != "" {
			w.res.Refs = append(w.res.Refs, Ref{From: owner, Target: target, Kind: codegraph.EdgeCalls})
		}
		w.walk(c, prefix, owner)
	default:
		w.walk(c, prefix, owner)
	}
}

func (w *jsWalker) class(n *sitter.Node, prefix string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(w.src)
	qualified := prefix + "." + name

	idx := len(w.res.Symbols)
	w.res.Symbols = append(w.res.Symbols, codegraph.Symbol{
		Name:      qualified,
		Kind:      codegraph.SymbolClass,
		Path:      w.res.Path,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		Signature: "class " + name,
	})

	for i := 0; i < int(n.NamedChildCount()); i++ {
		if h := n.NamedChild(i); h.Type() == "class_heritage" {
			for j := 0; j < int(h.NamedChildCount()); j++ {
				b := h.NamedChild(j)
				switch b.Type() {
				case "identifier", "member_expression":
					w.res.Refs = append(w.res.Refs, Ref{From: idx, Target: b.Content(w.src), Kind: codegraph.EdgeInherits})
				}
			}
		}
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		m := body.NamedChild(i)
		if m.Type() != "method_definition" {
			continue
		}
		mName := m.ChildByFieldName("name")
		if mName == nil {
			continue
		}
		mIdx := len(w.res.Symbols)
		w.res.Symbols = append(w.res.Symbols, codegraph.Symbol{
			Name:      qualified + "." + mName.Content(w.src),
			Kind:      codegraph.SymbolFunction,
			Path:      w.res.Path,
			StartLine: int(m.StartPoint().Row) + 1,
			EndLine:   int(m.EndPoint().Row) + 1,
			Signature: declFirstLine(m, w.src),
		})
		w.res.Edges = append(w.res.Edges, LocalEdge{From: idx, To: mIdx, Kind: codegraph.EdgeReferences})
		if mBody := m.ChildByFieldName("body"); mBody != nil {
			w.walk(mBody, qualified, mIdx)
		}
	}
}

func (w *jsWalker) function(n *sitter.Node, prefix string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(w.src)
	qualified := prefix + "." + name

	idx := len(w.res.Symbols)
	w.res.Symbols = append(w.res.Symbols, codegraph.Symbol{
		Name:      qualified,
		Kind:      codegraph.SymbolFunction,
		Path:      w.res.Path,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		Signature: declFirstLine(n, w.src),
	})
	if body := n.ChildByFieldName("body"); body != nil {
		w.walk(body, qualified, idx)
	}
}

// variables registers const/let bindings whose value is a function.
func (w *jsWalker) variables(n *sitter.Node, prefix string, owner int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		value := d.ChildByFieldName("value")
		nameNode := d.ChildByFieldName("name")
		if value == nil || nameNode == nil {
			continue
		}
		switch value.Type() {
		case "arrow_function", "function_expression", "function":
			name := nameNode.Content(w.src)
			qualified := prefix + "." + name
			idx := len(w.res.Symbols)
			w.res.Symbols = append(w.res.Symbols, codegraph.Symbol{
				Name:      qualified,
				Kind:      codegraph.SymbolFunction,
				Path:      w.res.Path,
				StartLine: int(d.StartPoint().Row) + 1,
				EndLine:   int(d.EndPoint().Row) + 1,
				Signature: declFirstLine(d, w.src),
			})
			if body := value.ChildByFieldName("body"); body != nil {
				w.statement(body, qualified, idx)
			}
		default:
			w.statement(value, prefix, owner)
		}
	}
}

func (w *jsWalker) importSource(n *sitter.Node) {
	source := n.ChildByFieldName("source")
	if source == nil {
		return
	}
	raw := strings.Trim(source.Content(w.src), `"'`)
	if raw == "" {
		return
	}
	w.res.Imports = append(w.res.Imports, raw)
	w.res.Refs = append(w.res.Refs, Ref{
		From:   0,
		Target: jsModuleTarget(raw),
		Kind:   codegraph.EdgeImports,
	})
}

// jsModuleTarget normalizes an import specifier into a dotted module name so
// relative imports line up with module symbols of the same snapshot.
func jsModuleTarget(spec string) string {
	s := spec
	for {
		switch {
		case strings.HasPrefix(s, "./"):
			s = s[2:]
		case strings.HasPrefix(s, "../"):
			s = s[3:]
		default:
			for _, ext := range []string{".js", ".mjs", ".cjs", ".jsx"} {
				s = strings.TrimSuffix(s, ext)
			}
			return strings.ReplaceAll(strings.Trim(s, "/"), "/", ".")
		}
	}
}

func jsCallTarget(call *sitter.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "member_expression":
		t := fn.Content(src)
		t = strings.TrimPrefix(t, "this.")
		if strings.ContainsAny(t, "()[] \n\t") {
			return ""
		}
		return t
	}
	return ""
}

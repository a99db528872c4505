package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	golang "github.com/smacker/go-tree-sitter/golang"
	"golang.org/x/mod/modfile"

	"codeatlas/internal/codegraph"
)

// GoExtractor reads package, type and function declarations from a Go file.
// Module, when set, prefixes qualified names with the module path so imports
// between packages of the same repository resolve.
type GoExtractor struct {
	Module string
}

func NewGoExtractor() *GoExtractor { return &GoExtractor{} }

func (e *GoExtractor) Language() string { return "go" }

func (e *GoExtractor) Extensions() []string { return []string{".go"} }

// GoModulePath reads the module path out of go.mod content. Empty when the
// file does not parse.
func GoModulePath(gomod []byte) string {
	f, err := modfile.ParseLax("go.mod", gomod, nil)
	if err != nil || f.Module == nil {
		return ""
	}
	return f.Module.Mod.Path
}

func (e *GoExtractor) Extract(ctx context.Context, path string, src []byte) (*FileResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("go: parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("go: %s: syntax error", path)
	}

	res := &FileResult{Path: path, Language: e.Language()}
	pkg := e.packageQualifier(path, root, src)
	res.Symbols = append(res.Symbols, codegraph.Symbol{
		Name:      pkg,
		Kind:      codegraph.SymbolModule,
		Path:      path,
		StartLine: 1,
		EndLine:   bytes.Count(src, []byte("\n")) + 1,
	})

	w := &goWalker{res: res, src: src, pkg: pkg}
	w.walk(root, 0)
	localizeRefs(res)
	return res, nil
}

// packageQualifier derives the dotted package name: module path plus the
// file's directory, falling back to the package clause for root files of an
// unknown module.
func (e *GoExtractor) packageQualifier(path string, root *sitter.Node, src []byte) string {
	dir := filepath.ToSlash(filepath.Dir(path))
	if dir == "." {
		dir = ""
	}
	full := strings.Trim(e.Module+"/"+dir, "/")
	if full != "" {
		return strings.ReplaceAll(full, "/", ".")
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		c := root.NamedChild(i)
		if c.Type() == "package_clause" && c.NamedChildCount() > 0 {
			return c.NamedChild(0).Content(src)
		}
	}
	return moduleName(path)
}

type goWalker struct {
	res *FileResult
	src []byte
	pkg string
}

func (w *goWalker) walk(n *sitter.Node, owner int) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "import_declaration":
			w.imports(c)
		case "function_declaration":
			w.function(c, "")
		case "method_declaration":
			w.function(c, goReceiver(c, w.src))
		case "type_declaration":
			w.types(c)
		case "call_expression":
			if target := goCallTarget(c, w.src); target != "" {
				w.res.Refs = append(w.res.Refs, Ref{From: owner, Target: target, Kind: codegraph.EdgeCalls})
			}
			w.walk(c, owner)
		default:
			w.walk(c, owner)
		}
	}
}

func (w *goWalker) imports(n *sitter.Node) {
	var visit func(*sitter.Node)
	visit = func(c *sitter.Node) {
		if c.Type() == "import_spec" {
			if p := c.ChildByFieldName("path"); p != nil {
				raw := strings.Trim(p.Content(w.src), `"`)
				if raw == "" {
					return
				}
				w.res.Imports = append(w.res.Imports, raw)
				w.res.Refs = append(w.res.Refs, Ref{
					From:   0,
					Target: strings.ReplaceAll(raw, "/", "."),
					Kind:   codegraph.EdgeImports,
				})
			}
			return
		}
		for i := 0; i < int(c.NamedChildCount()); i++ {
			visit(c.NamedChild(i))
		}
	}
	visit(n)
}

func (w *goWalker) function(n *sitter.Node, receiver string) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nameNode.Content(w.src)
	qualified := w.pkg + "." + name
	if receiver != "" {
		qualified = w.pkg + "." + receiver + "." + name
	}

	idx := len(w.res.Symbols)
	w.res.Symbols = append(w.res.Symbols, codegraph.Symbol{
		Name:      qualified,
		Kind:      codegraph.SymbolFunction,
		Path:      w.res.Path,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		Signature: declFirstLine(n, w.src),
		Doc:       leadingComment(n, w.src),
	})

	if receiver != "" {
		w.res.Refs = append(w.res.Refs, Ref{From: idx, Target: receiver, Kind: codegraph.EdgeReferences})
	}
	if body := n.ChildByFieldName("body"); body != nil {
		w.walk(body, idx)
	}
}

func (w *goWalker) types(decl *sitter.Node) {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		spec := decl.NamedChild(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nameNode.Content(w.src)

		idx := len(w.res.Symbols)
		w.res.Symbols = append(w.res.Symbols, codegraph.Symbol{
			Name:      w.pkg + "." + name,
			Kind:      codegraph.SymbolClass,
			Path:      w.res.Path,
			StartLine: int(spec.StartPoint().Row) + 1,
			EndLine:   int(spec.EndPoint().Row) + 1,
			Signature: "type " + name,
			Doc:       leadingComment(decl, w.src),
		})

		if st := spec.ChildByFieldName("type"); st != nil && st.Type() == "struct_type" {
			for _, embedded := range goEmbeddedTypes(st, w.src) {
				w.res.Refs = append(w.res.Refs, Ref{From: idx, Target: embedded, Kind: codegraph.EdgeInherits})
			}
		}
	}
}

// goReceiver names the receiver type of a method declaration, without
// pointer or parameter decoration.
func goReceiver(n *sitter.Node, src []byte) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	t := recv.NamedChild(0).ChildByFieldName("type")
	if t == nil {
		return ""
	}
	name := strings.TrimLeft(t.Content(src), "*")
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

func goCallTarget(call *sitter.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "selector_expression":
		t := fn.Content(src)
		if strings.ContainsAny(t, "()[] \n\t") {
			return ""
		}
		return t
	}
	return ""
}

// goEmbeddedTypes lists embedded struct fields, which act as inheritance for
// the relationship graph.
func goEmbeddedTypes(structType *sitter.Node, src []byte) []string {
	var out []string
	for i := 0; i < int(structType.NamedChildCount()); i++ {
		list := structType.NamedChild(i)
		if list.Type() != "field_declaration_list" {
			continue
		}
		for j := 0; j < int(list.NamedChildCount()); j++ {
			field := list.NamedChild(j)
			if field.Type() != "field_declaration" {
				continue
			}
			if field.ChildByFieldName("name") != nil {
				continue
			}
			if t := field.ChildByFieldName("type"); t != nil {
				name := strings.TrimLeft(t.Content(src), "*")
				if name != "" && !strings.ContainsAny(name, "()[] \n\t") {
					out = append(out, name)
				}
			}
		}
	}
	return out
}

// declFirstLine is the declaration header: everything up to the opening
// brace or the end of the first line.
func declFirstLine(n *sitter.Node, src []byte) string {
	text := n.Content(src)
	if i := strings.IndexByte(text, '{'); i >= 0 {
		text = text[:i]
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// leadingComment returns the first line of a comment directly above the
// node, with the comment markers stripped.
func leadingComment(n *sitter.Node, src []byte) string {
	p := n.PrevSibling()
	if p == nil || p.Type() != "comment" {
		return ""
	}
	if int(p.EndPoint().Row)+1 != int(n.StartPoint().Row) {
		return ""
	}
	text := p.Content(src)
	text = strings.TrimPrefix(text, "//")
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimSuffix(text, "*/")
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

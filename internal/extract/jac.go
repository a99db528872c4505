package extract

import (
	"context"
	"strings"

	"codeatlas/internal/codegraph"
)

// JacExtractor scans Jac sources line by line for node, walker and edge
// archetypes and the abilities declared inside them. Jac has no tree-sitter
// grammar, so a brace-depth scanner stands in for a real parse.
type JacExtractor struct{}

func NewJacExtractor() *JacExtractor { return &JacExtractor{} }

func (e *JacExtractor) Language() string { return "jac" }

func (e *JacExtractor) Extensions() []string { return []string{".jac"} }

type jacOpen struct {
	idx   int
	depth int
}

func (e *JacExtractor) Extract(ctx context.Context, path string, src []byte) (*FileResult, error) {
	lines := strings.Split(string(src), "\n")

	res := &FileResult{Path: path, Language: e.Language()}
	mod := moduleName(path)
	res.Symbols = append(res.Symbols, codegraph.Symbol{
		Name:      mod,
		Kind:      codegraph.SymbolModule,
		Path:      path,
		StartLine: 1,
		EndLine:   len(lines),
	})

	depth := 0
	var stack []jacOpen

	for i, raw := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(raw)
		lineNo := i + 1

		switch {
		case depth == 0 && jacArchetype(line) != "":
			kw := jacArchetype(line)
			name, parents := jacDeclName(line, kw)
			if name == "" {
				break
			}
			kind := codegraph.SymbolClass
			if kw == "walker" {
				kind = codegraph.SymbolFunction
			}
			idx := len(res.Symbols)
			res.Symbols = append(res.Symbols, codegraph.Symbol{
				Name:      mod + "." + name,
				Kind:      kind,
				Path:      path,
				StartLine: lineNo,
				EndLine:   lineNo,
				Signature: kw + " " + name,
			})
			for _, p := range parents {
				res.Refs = append(res.Refs, Ref{From: idx, Target: p, Kind: codegraph.EdgeInherits})
			}
			if strings.Contains(line, "{") {
				stack = append(stack, jacOpen{idx: idx, depth: depth})
			}

		case len(stack) > 0 && strings.HasPrefix(line, "can "):
			owner := stack[len(stack)-1].idx
			name, _ := jacDeclName(line, "can")
			if name == "" {
				break
			}
			idx := len(res.Symbols)
			res.Symbols = append(res.Symbols, codegraph.Symbol{
				Name:      res.Symbols[owner].Name + "." + name,
				Kind:      codegraph.SymbolFunction,
				Path:      path,
				StartLine: lineNo,
				EndLine:   lineNo,
				Signature: "can " + name,
			})
			res.Edges = append(res.Edges, LocalEdge{From: owner, To: idx, Kind: codegraph.EdgeReferences})
			if strings.Contains(line, "{") {
				stack = append(stack, jacOpen{idx: idx, depth: depth})
			}

		case strings.HasPrefix(line, "import"):
			if name := jacImportTarget(line); name != "" {
				res.Imports = append(res.Imports, name)
				res.Refs = append(res.Refs, Ref{From: 0, Target: name, Kind: codegraph.EdgeImports})
			}
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")
		for len(stack) > 0 && depth <= stack[len(stack)-1].depth {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			res.Symbols[top.idx].EndLine = lineNo
		}
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res.Symbols[top.idx].EndLine = len(lines)
	}

	localizeRefs(res)
	return res, nil
}

func jacArchetype(line string) string {
	for _, kw := range []string{"node ", "walker ", "edge "} {
		if strings.HasPrefix(line, kw) && strings.Contains(line, "{") {
			return strings.TrimSpace(kw)
		}
	}
	return ""
}

// jacDeclName splits "node city:place {" into the declared name and its
// parent archetypes.
func jacDeclName(line, kw string) (string, []string) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, kw))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil
	}
	token := strings.TrimRight(fields[0], "({;:,")
	if i := strings.IndexByte(token, '('); i >= 0 {
		token = token[:i]
	}
	parts := strings.Split(token, ":")
	name := strings.TrimSpace(parts[0])
	var parents []string
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			parents = append(parents, p)
		}
	}
	return name, parents
}

// jacImportTarget pulls the module name out of an import line, preferring a
// quoted path ("./graph.jac") over a bare identifier.
func jacImportTarget(line string) string {
	if i := strings.IndexAny(line, `"'`); i >= 0 {
		quote := line[i]
		if j := strings.IndexByte(line[i+1:], quote); j >= 0 {
			s := line[i+1 : i+1+j]
			for strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") {
				s = strings.TrimPrefix(s, "./")
				s = strings.TrimPrefix(s, "../")
			}
			s = strings.TrimSuffix(s, ".jac")
			return strings.ReplaceAll(strings.Trim(s, "/"), "/", ".")
		}
	}
	rest := strings.TrimPrefix(line, "import")
	rest = strings.TrimLeft(rest, ": \t")
	rest = strings.TrimPrefix(rest, "from ")
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimRight(fields[0], ";{,")
	if name == "" || strings.ContainsAny(name, "{}*") {
		return ""
	}
	return name
}

package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"codeatlas/internal/codegraph"
)

// Extractor turns one source file into declaration-level structure. Distinct
// files are independent, so implementations must be safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, path string, src []byte) (*FileResult, error)
	Language() string
	Extensions() []string
}

// LocalEdge links two symbols of the same file by index into
// FileResult.Symbols.
type LocalEdge struct {
	From int                `json:"from"`
	To   int                `json:"to"`
	Kind codegraph.EdgeKind `json:"kind"`
}

// Ref is a relationship whose target may live in another file. The source is
// an index into FileResult.Symbols; the target is a (possibly partial)
// qualified name resolved later against the whole snapshot.
type Ref struct {
	From   int                `json:"from"`
	Target string             `json:"target"`
	Kind   codegraph.EdgeKind `json:"kind"`
}

// FileResult is the extraction output for a single file. Symbol IDs are not
// assigned yet; edges and refs address symbols by slice index.
type FileResult struct {
	Path     string             `json:"path"`
	Language string             `json:"language"`
	Symbols  []codegraph.Symbol `json:"symbols"`
	Edges    []LocalEdge        `json:"edges"`
	Refs     []Ref              `json:"refs"`
	Imports  []string           `json:"imports,omitempty"`
}

// Skipped records a file that could not be extracted. The run continues.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Registry maps file extensions to extractors.
type Registry struct {
	byExt map[string]Extractor
	langs []Extractor
}

// NewRegistry builds a registry from the given extractors. Later extractors
// win extension conflicts.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	for _, e := range extractors {
		r.langs = append(r.langs, e)
		for _, ext := range e.Extensions() {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			r.byExt[ext] = e
		}
	}
	return r
}

// DefaultRegistry covers every language the snapshot pipeline understands.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewPythonExtractor(),
		NewGoExtractor(),
		NewJavaScriptExtractor(),
		NewJacExtractor(),
	)
}

// ForPath returns the extractor claiming the file's extension.
func (r *Registry) ForPath(path string) (Extractor, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return e, ok
}

// Extensions lists all claimed extensions, per registration order.
func (r *Registry) Extensions() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, e := range r.langs {
		out = append(out, e.Extensions()...)
	}
	return out
}

// Languages lists the registered language names.
func (r *Registry) Languages() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.langs))
	for _, e := range r.langs {
		out = append(out, e.Language())
	}
	return out
}

// Populate feeds a snapshot of file results into a building graph, in file
// order. Local edges are registered directly; refs stay name-based and are
// resolved by the graph at finalization.
func Populate(g *codegraph.Graph, results []*FileResult) error {
	for _, res := range results {
		if res == nil {
			continue
		}
		ids := make([]int, len(res.Symbols))
		for i, s := range res.Symbols {
			id, err := g.AddSymbol(s)
			if err != nil {
				return fmt.Errorf("extract: add symbol %s: %w", s.Name, err)
			}
			ids[i] = id
		}
		for _, e := range res.Edges {
			if e.From < 0 || e.From >= len(ids) || e.To < 0 || e.To >= len(ids) {
				return fmt.Errorf("extract: %s: local edge index out of range", res.Path)
			}
			if err := g.AddEdge(ids[e.From], ids[e.To], e.Kind); err != nil {
				return fmt.Errorf("extract: add edge in %s: %w", res.Path, err)
			}
		}
		for _, ref := range res.Refs {
			if ref.From < 0 || ref.From >= len(ids) {
				return fmt.Errorf("extract: %s: ref index out of range", res.Path)
			}
			if err := g.AddRef(ids[ref.From], ref.Target, ref.Kind); err != nil {
				return fmt.Errorf("extract: add ref in %s: %w", res.Path, err)
			}
		}
	}
	return nil
}

// localizeRefs rewrites refs whose target names exactly one symbol of the
// same file into direct local edges. Anything else stays a ref for the
// cross-file resolution pass.
func localizeRefs(res *FileResult) {
	if res == nil || len(res.Refs) == 0 {
		return
	}
	bySeg := make(map[string][]int, len(res.Symbols))
	for i, s := range res.Symbols {
		seg := s.Name
		if j := strings.LastIndexByte(seg, '.'); j >= 0 {
			seg = seg[j+1:]
		}
		bySeg[seg] = append(bySeg[seg], i)
	}

	kept := res.Refs[:0]
	for _, ref := range res.Refs {
		seg := ref.Target
		if j := strings.LastIndexByte(seg, '.'); j >= 0 {
			seg = seg[j+1:]
		}
		matched := -1
		for _, i := range bySeg[seg] {
			name := res.Symbols[i].Name
			if name == ref.Target || strings.HasSuffix(name, "."+ref.Target) {
				if matched >= 0 {
					matched = -1
					break
				}
				matched = i
			}
		}
		if matched >= 0 {
			if matched != ref.From {
				res.Edges = append(res.Edges, LocalEdge{From: ref.From, To: matched, Kind: ref.Kind})
			}
			continue
		}
		kept = append(kept, ref)
	}
	res.Refs = kept
}

// moduleName converts a repo-relative path into a dotted module name:
// "pkg/a.py" becomes "pkg.a".
func moduleName(path string) string {
	p := filepath.ToSlash(path)
	if ext := filepath.Ext(p); ext != "" {
		p = p[:len(p)-len(ext)]
	}
	p = strings.Trim(p, "/")
	return strings.ReplaceAll(p, "/", ".")
}

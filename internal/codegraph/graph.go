package codegraph

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Graph holds the complete symbol/edge set for one repository snapshot.
//
// Lifecycle: a graph starts in Building and accepts AddSymbol/AddEdge/AddRef.
// Finalize resolves pending cross-file refs against the full symbol table and
// flips the graph to Finalized, after which it is immutable and safe for
// concurrent readers. Queries (Neighbors, TopologicalOrder, accessors) are
// only available on a finalized graph.
type Graph struct {
	mu    sync.RWMutex
	state State

	symbols  []Symbol
	byName   map[string]int
	byFile   map[string][]int
	bySuffix map[string][]int // last name segment -> symbol IDs

	edges   []Edge
	edgeSet map[Edge]struct{}
	out     map[int][]int // symbol ID -> edge indices, insertion order
	in      map[int][]int

	pending    []PendingRef
	unresolved []UnresolvedRef

	topoOrder  []int
	topoBreaks []CycleBreak

	dupMerged  int
	maxSymbols int
	maxEdges   int
}

// Option configures a graph at construction time.
type Option func(*Graph)

// WithMaxSymbols caps the number of symbols (0 = unlimited).
func WithMaxSymbols(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxSymbols = n
		}
	}
}

// WithMaxEdges caps the number of edges (0 = unlimited).
func WithMaxEdges(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxEdges = n
		}
	}
}

// New creates an empty graph in the Building state.
func New(opts ...Option) *Graph {
	g := &Graph{
		byName:   make(map[string]int),
		byFile:   make(map[string][]int),
		bySuffix: make(map[string][]int),
		edgeSet:  make(map[Edge]struct{}),
		out:      make(map[int][]int),
		in:       make(map[int][]int),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the current lifecycle phase.
func (g *Graph) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// AddSymbol registers a symbol and returns its ID. Symbols are deduplicated
// by qualified name: the first occurrence wins and later occurrences return
// the existing ID. The location metadata of later duplicates is discarded.
func (g *Graph) AddSymbol(s Symbol) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateBuilding {
		return 0, ErrFinalized
	}
	if err := validateSymbol(s); err != nil {
		return 0, err
	}
	if id, ok := g.byName[s.Name]; ok {
		g.dupMerged++
		return id, nil
	}
	if g.maxSymbols > 0 && len(g.symbols) >= g.maxSymbols {
		return 0, ErrSymbolLimit
	}
	id := len(g.symbols)
	s.ID = id
	g.symbols = append(g.symbols, s)
	g.byName[s.Name] = id
	g.byFile[s.Path] = append(g.byFile[s.Path], id)
	seg := lastSegment(s.Name)
	g.bySuffix[seg] = append(g.bySuffix[seg], id)
	return id, nil
}

// AddEdge records a directed relationship between two known symbols. Both
// endpoints must already exist; a duplicate (from, to, kind) is merged
// idempotently.
func (g *Graph) AddEdge(from, to int, kind EdgeKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateBuilding {
		return ErrFinalized
	}
	return g.addEdgeLocked(from, to, kind)
}

// AddRef queues a relationship whose target is a qualified (or partial) name.
// Targets are resolved against the complete symbol table during Finalize;
// unresolvable refs are recorded and dropped, never fatal.
func (g *Graph) AddRef(from int, target string, kind EdgeKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateBuilding {
		return ErrFinalized
	}
	if from < 0 || from >= len(g.symbols) {
		return fmt.Errorf("%w: ref source %d", ErrSymbolNotFound, from)
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEdgeKind, kind)
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("codegraph: empty ref target from symbol %d", from)
	}
	g.pending = append(g.pending, PendingRef{From: from, Target: target, Kind: kind})
	return nil
}

// Finalize resolves all pending refs and flips the graph to Finalized.
// The transition is atomic: on error (including context cancellation) the
// graph stays in Building with no partial resolution visible. Finalizing an
// already finalized graph returns ErrFinalized.
func (g *Graph) Finalize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateBuilding {
		return ErrFinalized
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Stage resolution without touching graph state.
	resolved := make([]Edge, 0, len(g.pending))
	misses := make([]UnresolvedRef, 0)
	for i, ref := range g.pending {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		to, reason := g.resolveLocked(ref.Target)
		if reason != "" {
			misses = append(misses, UnresolvedRef{From: ref.From, Target: ref.Target, Kind: ref.Kind, Reason: reason})
			continue
		}
		resolved = append(resolved, Edge{From: ref.From, To: to, Kind: ref.Kind})
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Commit.
	for _, e := range resolved {
		if err := g.addEdgeLocked(e.From, e.To, e.Kind); err != nil {
			return err
		}
	}
	g.unresolved = append(g.unresolved, misses...)
	g.pending = nil
	g.topoOrder, g.topoBreaks = g.topoSortLocked()
	g.state = StateFinalized
	return nil
}

// Neighbors returns the symbols connected to id, in edge insertion order.
// For DirBoth, outgoing neighbors come before incoming ones.
func (g *Graph) Neighbors(id int, dir Direction) ([]Symbol, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateFinalized {
		return nil, ErrNotFinalized
	}
	if id < 0 || id >= len(g.symbols) {
		return nil, fmt.Errorf("%w: id %d", ErrSymbolNotFound, id)
	}
	var out []Symbol
	if dir == DirOutgoing || dir == DirBoth {
		for _, ei := range g.out[id] {
			out = append(out, g.symbols[g.edges[ei].To])
		}
	}
	if dir == DirIncoming || dir == DirBoth {
		for _, ei := range g.in[id] {
			out = append(out, g.symbols[g.edges[ei].From])
		}
	}
	return out, nil
}

// TopologicalOrder returns all symbols so that a symbol's references come
// before the symbol itself where possible. Cycles are broken at the smallest
// qualified name; every break is reported by CycleBreaks.
func (g *Graph) TopologicalOrder() ([]Symbol, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateFinalized {
		return nil, ErrNotFinalized
	}
	out := make([]Symbol, len(g.topoOrder))
	for i, id := range g.topoOrder {
		out[i] = g.symbols[id]
	}
	return out, nil
}

// CycleBreaks lists the forced placements recorded while computing the
// topological order.
func (g *Graph) CycleBreaks() ([]CycleBreak, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateFinalized {
		return nil, ErrNotFinalized
	}
	return append([]CycleBreak(nil), g.topoBreaks...), nil
}

// SymbolByID returns the symbol with the given ID.
func (g *Graph) SymbolByID(id int) (Symbol, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateFinalized {
		return Symbol{}, ErrNotFinalized
	}
	if id < 0 || id >= len(g.symbols) {
		return Symbol{}, fmt.Errorf("%w: id %d", ErrSymbolNotFound, id)
	}
	return g.symbols[id], nil
}

// SymbolByName returns the symbol with the given qualified name.
func (g *Graph) SymbolByName(name string) (Symbol, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateFinalized {
		return Symbol{}, ErrNotFinalized
	}
	id, ok := g.byName[name]
	if !ok {
		return Symbol{}, fmt.Errorf("%w: %q", ErrSymbolNotFound, name)
	}
	return g.symbols[id], nil
}

// SymbolsInFile returns the symbols declared in one source file, in
// insertion order.
func (g *Graph) SymbolsInFile(path string) ([]Symbol, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateFinalized {
		return nil, ErrNotFinalized
	}
	ids := g.byFile[path]
	out := make([]Symbol, len(ids))
	for i, id := range ids {
		out[i] = g.symbols[id]
	}
	return out, nil
}

// Symbols returns every symbol in insertion order.
func (g *Graph) Symbols() ([]Symbol, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateFinalized {
		return nil, ErrNotFinalized
	}
	return append([]Symbol(nil), g.symbols...), nil
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() ([]Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateFinalized {
		return nil, ErrNotFinalized
	}
	return append([]Edge(nil), g.edges...), nil
}

// Unresolved returns the refs that could not be resolved at finalization.
func (g *Graph) Unresolved() ([]UnresolvedRef, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateFinalized {
		return nil, ErrNotFinalized
	}
	return append([]UnresolvedRef(nil), g.unresolved...), nil
}

// Stats summarizes the finalized graph.
func (g *Graph) Stats() (Stats, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != StateFinalized {
		return Stats{}, ErrNotFinalized
	}
	byKind := make(map[EdgeKind]int, 4)
	for _, e := range g.edges {
		byKind[e.Kind]++
	}
	return Stats{
		Symbols:          len(g.symbols),
		Edges:            len(g.edges),
		DuplicatesMerged: g.dupMerged,
		Unresolved:       len(g.unresolved),
		CycleBreaks:      len(g.topoBreaks),
		EdgesByKind:      byKind,
	}, nil
}

// ---- internal ----

func (g *Graph) addEdgeLocked(from, to int, kind EdgeKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEdgeKind, kind)
	}
	if from < 0 || from >= len(g.symbols) {
		return fmt.Errorf("%w: edge source %d", ErrSymbolNotFound, from)
	}
	if to < 0 || to >= len(g.symbols) {
		return fmt.Errorf("%w: edge target %d", ErrSymbolNotFound, to)
	}
	e := Edge{From: from, To: to, Kind: kind}
	if _, dup := g.edgeSet[e]; dup {
		return nil
	}
	if g.maxEdges > 0 && len(g.edges) >= g.maxEdges {
		return ErrEdgeLimit
	}
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.edgeSet[e] = struct{}{}
	g.out[from] = append(g.out[from], idx)
	g.in[to] = append(g.in[to], idx)
	return nil
}

// resolveLocked matches a target name against the symbol table. Exact
// qualified matches win; otherwise the dotted-suffix rule applies: the target
// must equal the tail of exactly one qualified name at a "." boundary.
func (g *Graph) resolveLocked(target string) (id int, reason string) {
	if id, ok := g.byName[target]; ok {
		return id, ""
	}
	candidates := g.bySuffix[lastSegment(target)]
	matched := -1
	for _, cid := range candidates {
		name := g.symbols[cid].Name
		if name == target || strings.HasSuffix(name, "."+target) {
			if matched >= 0 {
				return 0, ReasonAmbiguous
			}
			matched = cid
		}
	}
	if matched < 0 {
		return 0, ReasonNoCandidate
	}
	return matched, ""
}

func validateSymbol(s Symbol) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSymbol)
	}
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("%w: %s has no path", ErrInvalidSymbol, s.Name)
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: %s has kind %q", ErrInvalidSymbol, s.Name, s.Kind)
	}
	if s.StartLine < 1 || s.EndLine < s.StartLine {
		return fmt.Errorf("%w: %s has span %d..%d", ErrInvalidSymbol, s.Name, s.StartLine, s.EndLine)
	}
	return nil
}

func lastSegment(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

package codegraph

// SymbolKind tags the declaration level of an extracted entity.
type SymbolKind string

const (
	SymbolModule   SymbolKind = "module"
	SymbolClass    SymbolKind = "class"
	SymbolFunction SymbolKind = "function"
)

// Valid reports whether k is one of the known symbol kinds.
func (k SymbolKind) Valid() bool {
	switch k {
	case SymbolModule, SymbolClass, SymbolFunction:
		return true
	}
	return false
}

// EdgeKind tags a directed relationship between two symbols.
type EdgeKind string

const (
	EdgeImports    EdgeKind = "imports"
	EdgeCalls      EdgeKind = "calls"
	EdgeInherits   EdgeKind = "inherits"
	EdgeReferences EdgeKind = "references"
)

// Valid reports whether k is one of the known edge kinds.
func (k EdgeKind) Valid() bool {
	switch k {
	case EdgeImports, EdgeCalls, EdgeInherits, EdgeReferences:
		return true
	}
	return false
}

// Symbol is a named program entity (module, class or function) tied to one
// source location. The qualified Name is unique within a snapshot; the ID is
// the insertion index assigned by the graph.
type Symbol struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	Path      string     `json:"path"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
	Signature string     `json:"signature,omitempty"`
	Doc       string     `json:"doc,omitempty"`
}

// Edge is a directed relationship From → To. From references To.
type Edge struct {
	From int      `json:"from"`
	To   int      `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// PendingRef is a relationship whose target is still a name, not an ID.
// Extractors emit these for anything that may resolve to another file; the
// graph resolves them against the full symbol table at finalization.
type PendingRef struct {
	From   int      `json:"from"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// UnresolvedRef records a pending ref whose target matched no symbol (or too
// many). The edge is dropped from the finalized graph; the run continues.
type UnresolvedRef struct {
	From   int      `json:"from"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
	Reason string   `json:"reason"` // "no_candidate" or "ambiguous"
}

const (
	ReasonNoCandidate = "no_candidate"
	ReasonAmbiguous   = "ambiguous"
)

// CycleBreak records a symbol that had to be emitted before all of its
// references during topological ordering.
type CycleBreak struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Direction selects which edges Neighbors follows.
type Direction string

const (
	DirIncoming Direction = "incoming"
	DirOutgoing Direction = "outgoing"
	DirBoth     Direction = "both"
)

// ParseDirection normalizes a textual direction ("" defaults to both).
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case DirIncoming, DirOutgoing, DirBoth:
		return Direction(s), true
	case "":
		return DirBoth, true
	}
	return "", false
}

// State is the graph lifecycle phase.
type State int

const (
	StateBuilding State = iota
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateFinalized:
		return "finalized"
	}
	return "unknown"
}

// Stats summarizes a finalized graph.
type Stats struct {
	Symbols          int              `json:"symbols"`
	Edges            int              `json:"edges"`
	DuplicatesMerged int              `json:"duplicates_merged"`
	Unresolved       int              `json:"unresolved"`
	CycleBreaks      int              `json:"cycle_breaks"`
	EdgesByKind      map[EdgeKind]int `json:"edges_by_kind"`
}

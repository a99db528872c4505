package artifact

// SchemaVersion is stamped into every stored artifact so readers can reject
// artifacts written by an incompatible build.
const SchemaVersion = 1

// ExtCount is one extension frequency row of a snapshot.
type ExtCount struct {
	Ext   string `json:"ext"`   // e.g. ".py"
	Count int    `json:"count"` // frequency reference
}

// LangCount is one language frequency row, derived from claimed extensions.
type LangCount struct {
	Language string `json:"language"`
	Count    int    `json:"count"`
}

// Ref points at a file location backing a statement in the generated doc.
type Ref struct {
	Path  string  `json:"path"`
	Lines *[2]int `json:"lines,omitempty"` // nil means unknown/unspecified lines
}

package codegraph

import "errors"

var (
	// ErrFinalized is returned when a mutating operation hits a finalized
	// graph. This is a programming error on the caller's side.
	ErrFinalized = errors.New("codegraph: graph is finalized")

	// ErrNotFinalized is returned when a query runs before finalization.
	ErrNotFinalized = errors.New("codegraph: graph is not finalized")

	// ErrSymbolNotFound is returned for IDs outside the symbol table.
	ErrSymbolNotFound = errors.New("codegraph: symbol not found")

	// ErrInvalidSymbol is returned when a symbol fails validation.
	ErrInvalidSymbol = errors.New("codegraph: invalid symbol")

	// ErrInvalidEdgeKind is returned for an unknown edge kind.
	ErrInvalidEdgeKind = errors.New("codegraph: invalid edge kind")

	// ErrSymbolLimit and ErrEdgeLimit guard the configured graph size caps.
	ErrSymbolLimit = errors.New("codegraph: symbol limit exceeded")
	ErrEdgeLimit   = errors.New("codegraph: edge limit exceeded")
)

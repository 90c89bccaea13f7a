// Package graph builds a code knowledge graph from parsed source files:
// files, classes, functions and imported modules as nodes, with structural
// and call relationships as edges.
package graph

// Node kinds.
const (
	KindFile           = "file"
	KindClass          = "class"
	KindFunction       = "function"
	KindMethod         = "method"
	KindExternalModule = "external-module"
)

// Edge relations.
const (
	RelDefines      = "defines"
	RelHasMethod    = "has-method"
	RelImports      = "imports"
	RelInheritsFrom = "inherits-from"
	RelCalls        = "calls"
)

// Node is a graph vertex. IDs are stable across rebuilds: files use their
// relative path, declarations use "relpath::Name" or "relpath::Class.Name",
// external modules use the bare module name.
type Node struct {
	ID        string
	Kind      string
	Name      string
	FilePath  string
	StartLine int
	EndLine   int
}

// Edge is a directed, typed relationship between two nodes. Call edges
// carry the source line of the call site; structural edges leave it zero.
type Edge struct {
	From     string
	To       string
	Relation string
	Line     int
}

// Package languages wires tree-sitter grammars into the chunker registry.
package languages

import "github.com/Asishkarthikeya/Codebase-Agent/internal/chunker"

// Default returns a registry with every supported language registered.
func Default() *chunker.Registry {
	r := chunker.NewRegistry()
	RegisterGo(r)
	RegisterPython(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	return r
}

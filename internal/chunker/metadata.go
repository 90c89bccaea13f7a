package chunker

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// describeDeclaration fills in the metadata that only makes sense for a
// chunk backed by a single declaration node: its name, the symbols it
// defines, a branch-count complexity estimate and the enclosing class.
func (c *StructuralChunker) describeDeclaration(st *fileState, n *sitter.Node, ch *Chunk) {
	ch.Name = nameOf(n, st.src)
	ch.ParentContext = enclosingClass(st, n)
	ch.Complexity = complexity(st.spec, n)
	ch.SymbolsDefined = collectSymbols(st, n, ch.ParentContext)
}

// nameOf extracts the declared identifier. Grammars that nest the name one
// level down (Go's type_declaration wrapping a type_spec) are handled by
// checking the immediate named children as well.
func nameOf(n *sitter.Node, src []byte) string {
	if f := n.ChildByFieldName("name"); f != nil {
		return f.Content(src)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if f := n.NamedChild(i).ChildByFieldName("name"); f != nil {
			return f.Content(src)
		}
	}
	return ""
}

// enclosingClass walks up the ancestor chain looking for a class scope and
// returns its name, or "".
func enclosingClass(st *fileState, n *sitter.Node) string {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if st.spec.ClassKinds[p.Type()] {
			return nameOf(p, st.src)
		}
	}
	return ""
}

// complexity is 1 plus the number of branching constructs in the subtree.
func complexity(spec *LanguageSpec, n *sitter.Node) int {
	count := 1
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if spec.BranchKinds[node.Type()] {
			count++
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			walk(node.NamedChild(i))
		}
	}
	walk(n)
	return count
}

// collectSymbols lists every declaration name in the subtree. Functions
// declared inside a class scope are qualified as Class.method, matching
// the node identity scheme used by the knowledge graph.
func collectSymbols(st *fileState, n *sitter.Node, parent string) []string {
	var out []string
	var walk func(node *sitter.Node, class string)
	walk = func(node *sitter.Node, class string) {
		kind := node.Type()
		if st.spec.IsDeclaration(kind) {
			name := nameOf(node, st.src)
			if name != "" {
				if st.spec.FunctionKinds[kind] && class != "" {
					out = append(out, class+"."+name)
				} else {
					out = append(out, name)
				}
			}
			if st.spec.ClassKinds[kind] {
				class = name
			}
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			walk(node.NamedChild(i), class)
		}
	}
	walk(n, parent)
	return out
}

package graph

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker"
)

// declaration is a class, function or method found in one file.
type declaration struct {
	Kind      string // KindClass, KindFunction or KindMethod
	Name      string
	Qualified string // "Class.method" for methods, otherwise Name
	Class     string // enclosing or receiver class, "" for free functions
	StartLine int
	EndLine   int
	Bases     []string // superclass names, classes only
}

// callSite is an unresolved call: who made it, the raw callee text and
// where in the file it happens.
type callSite struct {
	CallerQualified string // "" means file level
	Callee          string
	Line            int
}

// fileFacts is everything the extractor learned about one file.
type fileFacts struct {
	Path         string
	Language     string
	Declarations []declaration
	Imports      []string // module names
	Calls        []callSite
}

// extractor walks tree-sitter parse trees using the node kind sets from the
// chunker registry.
type extractor struct {
	registry *chunker.Registry
}

// extract parses one file and collects its declarations, imports and call
// sites. Files without a grammar, or with broken parses, yield nil.
func (e *extractor) extract(path, lang string, src []byte) *fileFacts {
	spec, _ := e.registry.Lookup(path)
	if spec == nil {
		return nil
	}
	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil
	}
	defer tree.Close()
	root := tree.RootNode()
	if root.HasError() {
		return nil
	}

	facts := &fileFacts{Path: path, Language: lang}
	e.walk(spec, lang, src, root, "", "", facts)
	return facts
}

// walk descends the tree tracking the enclosing class and enclosing
// callable (the qualified name charged with any call sites found).
func (e *extractor) walk(spec *chunker.LanguageSpec, lang string, src []byte, n *sitter.Node, class, caller string, facts *fileFacts) {
	kind := n.Type()

	// Python wraps decorated classes and functions in a decorated_definition
	// node. Classify the inner definition instead, and keep walking the
	// decorator expressions so their call sites are still recorded.
	if kind == "decorated_definition" {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			e.walk(spec, lang, src, n.NamedChild(i), class, caller, facts)
		}
		return
	}

	switch {
	case spec.ImportKinds[kind]:
		facts.Imports = append(facts.Imports, importModules(lang, n, src)...)
		return

	case spec.CallKinds[kind]:
		if callee := calleeText(n, src); callee != "" {
			facts.Calls = append(facts.Calls, callSite{
				CallerQualified: caller,
				Callee:          callee,
				Line:            int(n.StartPoint().Row) + 1,
			})
		}
		// Arguments may contain nested calls.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			e.walk(spec, lang, src, n.NamedChild(i), class, caller, facts)
		}
		return

	case spec.ClassKinds[kind]:
		name := nodeName(n, src)
		if name == "" {
			break
		}
		facts.Declarations = append(facts.Declarations, declaration{
			Kind:      KindClass,
			Name:      name,
			Qualified: name,
			StartLine: int(n.StartPoint().Row) + 1,
			EndLine:   int(n.EndPoint().Row) + 1,
			Bases:     superclasses(lang, n, src),
		})
		for i := 0; i < int(n.NamedChildCount()); i++ {
			e.walk(spec, lang, src, n.NamedChild(i), name, caller, facts)
		}
		return

	case spec.FunctionKinds[kind]:
		name := nodeName(n, src)
		if name == "" {
			break
		}
		decl := declaration{
			Kind:      KindFunction,
			Name:      name,
			Qualified: name,
			StartLine: int(n.StartPoint().Row) + 1,
			EndLine:   int(n.EndPoint().Row) + 1,
		}
		owner := class
		if owner == "" {
			owner = receiverType(n, src)
		}
		if owner != "" {
			decl.Kind = KindMethod
			decl.Class = owner
			decl.Qualified = owner + "." + name
		}
		facts.Declarations = append(facts.Declarations, decl)
		for i := 0; i < int(n.NamedChildCount()); i++ {
			e.walk(spec, lang, src, n.NamedChild(i), class, decl.Qualified, facts)
		}
		return
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		e.walk(spec, lang, src, n.NamedChild(i), class, caller, facts)
	}
}

func nodeName(n *sitter.Node, src []byte) string {
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

// calleeText returns the dotted expression being called, e.g. "self.helper"
// or "os.path.join".
func calleeText(n *sitter.Node, src []byte) string {
	if f := n.ChildByFieldName("function"); f != nil {
		return f.Content(src)
	}
	return ""
}

// receiverType extracts the receiver type name of a Go method declaration,
// with pointer and bracket noise stripped.
func receiverType(n *sitter.Node, src []byte) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	text := recv.Content(src)
	text = strings.Trim(text, "()")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	typ := fields[len(fields)-1]
	typ = strings.TrimPrefix(typ, "*")
	if i := strings.IndexByte(typ, '['); i >= 0 {
		typ = typ[:i]
	}
	return typ
}

// superclasses lists base class names for a class node. Python exposes them
// under the superclasses field; JS/TS nest them in a heritage clause.
func superclasses(lang string, n *sitter.Node, src []byte) []string {
	switch lang {
	case "python":
		sup := n.ChildByFieldName("superclasses")
		if sup == nil {
			return nil
		}
		var bases []string
		for i := 0; i < int(sup.NamedChildCount()); i++ {
			child := sup.NamedChild(i)
			switch child.Type() {
			case "identifier", "attribute":
				bases = append(bases, child.Content(src))
			}
		}
		return bases
	case "javascript", "typescript":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if child.Type() == "class_heritage" || child.Type() == "extends_clause" {
				var bases []string
				for j := 0; j < int(child.NamedChildCount()); j++ {
					bases = append(bases, child.NamedChild(j).Content(src))
				}
				if len(bases) == 0 {
					// class_heritage may hold a bare expression.
					if text := strings.TrimSpace(strings.TrimPrefix(child.Content(src), "extends")); text != "" {
						bases = append(bases, text)
					}
				}
				return bases
			}
		}
	}
	return nil
}

// importModules resolves an import statement node into module names.
func importModules(lang string, n *sitter.Node, src []byte) []string {
	switch lang {
	case "python":
		if n.Type() == "import_from_statement" {
			if mod := n.ChildByFieldName("module_name"); mod != nil {
				return []string{mod.Content(src)}
			}
			return nil
		}
		var mods []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				mods = append(mods, child.Content(src))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					mods = append(mods, name.Content(src))
				}
			}
		}
		return mods
	case "go":
		var mods []string
		var walk func(*sitter.Node)
		walk = func(node *sitter.Node) {
			if node.Type() == "interpreted_string_literal" {
				mods = append(mods, strings.Trim(node.Content(src), `"`))
				return
			}
			for i := 0; i < int(node.NamedChildCount()); i++ {
				walk(node.NamedChild(i))
			}
		}
		walk(n)
		return mods
	case "javascript", "typescript":
		if f := n.ChildByFieldName("source"); f != nil {
			return []string{strings.Trim(f.Content(src), `"'`)}
		}
	}
	return nil
}

package chunker

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// mergeSlack is the token allowance above the budget when gluing small
// sibling chunks back together.
const mergeSlack = 50

// Chunk is a contiguous byte range of a source file with extracted metadata.
// For a parsed file the chunks of that file are non-overlapping and cover it
// end to end, so re-chunking an unchanged file reproduces identical IDs.
type Chunk struct {
	FilePath  string
	Language  string
	StartByte int
	EndByte   int
	StartLine int
	EndLine   int

	// Kind is the tree-sitter node type for declaration chunks, or one of
	// "text", "large-text", "merged".
	Kind string
	// Name is the declared identifier when the chunk is a single declaration.
	Name    string
	Content string

	TokenCount     int
	SymbolsDefined []string
	ImportsUsed    []string
	Complexity     int
	ParentContext  string
}

// ID is the stable identity of a chunk, derived from its location only.
func (c *Chunk) ID() string {
	return fmt.Sprintf("%s_%d_%d", c.FilePath, c.StartByte, c.EndByte)
}

// EmbedText is the text handed to the embedder. Prefixing the relative path
// lets the model associate content with its location.
func (c *Chunk) EmbedText() string {
	return c.FilePath + "\n\n" + c.Content
}

// StructuralChunker splits source files along tree-sitter declaration
// boundaries, holding every chunk under a token budget.
type StructuralChunker struct {
	registry  *Registry
	maxTokens int
}

// New creates a chunker backed by the given registry. maxTokens is the
// token budget per chunk, measured with the cl100k_base encoding.
func New(r *Registry, maxTokens int) *StructuralChunker {
	return &StructuralChunker{registry: r, maxTokens: maxTokens}
}

// Chunk splits src into chunks. Files with no registered grammar, and files
// whose parse tree contains errors, fall back to plain text splitting.
// Binary content (embedded NUL bytes) is rejected.
func (c *StructuralChunker) Chunk(path string, src []byte) ([]Chunk, error) {
	if bytes.IndexByte(src, 0) >= 0 {
		return nil, fmt.Errorf("chunk %s: binary content", path)
	}
	if len(bytes.TrimSpace(src)) == 0 {
		return nil, nil
	}

	spec, lang := c.registry.Lookup(path)
	if spec == nil {
		return c.textFallback(path, "", src), nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return c.textFallback(path, lang, src), nil
	}
	defer tree.Close()
	root := tree.RootNode()
	if root.HasError() {
		return c.textFallback(path, lang, src), nil
	}

	st := &fileState{
		path:  path,
		lang:  lang,
		spec:  spec,
		src:   src,
		lines: lineOffsets(src),
	}
	st.collectImports(root)

	spans := c.chunkNode(st, root)
	spans = seal(spans, int(root.StartByte()), int(root.EndByte()))

	chunks := make([]Chunk, 0, len(spans))
	for _, sp := range spans {
		chunks = append(chunks, c.finish(st, sp))
	}
	return chunks, nil
}

// span is an intermediate chunk during recursion. node is set only when the
// span corresponds to exactly one tree node.
type span struct {
	start, end int
	tokens     int
	kind       string
	node       *sitter.Node
	decls      int
	symbols    []string
}

// rootKinds are file-level nodes that are always split along their
// children, so a small file still yields per-declaration chunks.
var rootKinds = map[string]bool{
	"module":      true,
	"program":     true,
	"source_file": true,
}

// chunkNode implements the recursive descent. A node that fits the budget is
// emitted whole. An oversized node, and the file root regardless of size, is
// split along its children, the pieces sealed to cover the parent range,
// then greedily re-merged while the combined count stays safely under
// budget.
func (c *StructuralChunker) chunkNode(st *fileState, n *sitter.Node) []span {
	start, end := int(n.StartByte()), int(n.EndByte())
	tokens := CountTokens(string(st.src[start:end]))
	if tokens <= c.maxTokens && !rootKinds[n.Type()] {
		return []span{{
			start:   start,
			end:     end,
			tokens:  tokens,
			kind:    n.Type(),
			node:    n,
			decls:   countDeclarations(st.spec, n),
			symbols: collectSymbols(st, n, enclosingClass(st, n)),
		}}
	}

	if n.ChildCount() == 0 {
		return c.splitLargeText(st, start, end)
	}

	var out []span
	for i := 0; i < int(n.ChildCount()); i++ {
		out = append(out, c.chunkNode(st, n.Child(i))...)
	}
	if len(out) == 0 {
		return c.splitLargeText(st, start, end)
	}
	out = seal(out, start, end)
	return c.merge(out)
}

// merge glues adjacent spans left to right while the summed token count
// stays under budget minus slack, so a merged chunk never exceeds the hard
// budget. A merge that ends up holding more than one declaration loses its
// specific kind.
func (c *StructuralChunker) merge(spans []span) []span {
	if len(spans) <= 1 {
		return spans
	}
	out := spans[:1]
	for _, next := range spans[1:] {
		acc := &out[len(out)-1]
		if combined := acc.tokens + next.tokens; combined < c.maxTokens-mergeSlack && combined <= c.maxTokens {
			acc.end = next.end
			acc.tokens += next.tokens
			acc.symbols = append(acc.symbols, next.symbols...)
			if next.decls > 0 && acc.decls == 0 {
				acc.kind = next.kind
				acc.node = next.node
			} else if next.decls > 0 {
				acc.node = nil
			}
			acc.decls += next.decls
			if acc.decls > 1 {
				acc.kind = "merged"
			}
			continue
		}
		out = append(out, next)
	}
	return out
}

// seal stretches spans so they tile [start, end) exactly, absorbing the
// whitespace and comments between siblings into the preceding span.
func seal(spans []span, start, end int) []span {
	if len(spans) == 0 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	spans[0].start = start
	for i := 0; i < len(spans)-1; i++ {
		spans[i].end = spans[i+1].start
	}
	spans[len(spans)-1].end = end
	return spans
}

// finish materialises a span into a Chunk, attaching content, line numbers
// and metadata.
func (c *StructuralChunker) finish(st *fileState, sp span) Chunk {
	content := string(st.src[sp.start:sp.end])
	ch := Chunk{
		FilePath:   st.path,
		Language:   st.lang,
		StartByte:  sp.start,
		EndByte:    sp.end,
		StartLine:  st.lineAt(sp.start),
		EndLine:    st.lineAt(sp.end - 1),
		Kind:       sp.kind,
		Content:    content,
		TokenCount: CountTokens(st.path + "\n\n" + content),
		ImportsUsed: st.importsAbove(sp.end),
	}
	if sp.node != nil && sp.decls >= 1 {
		c.describeDeclaration(st, sp.node, &ch)
	}
	if len(ch.SymbolsDefined) == 0 && len(sp.symbols) > 0 {
		ch.SymbolsDefined = sp.symbols
	}
	return ch
}

// countDeclarations counts top-most declaration nodes in the subtree rooted
// at n, including n itself. Nested declarations do not count: a class with
// three methods is still one declaration. Used to decide whether a merge
// crossed declaration boundaries.
func countDeclarations(spec *LanguageSpec, n *sitter.Node) int {
	count := 0
	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if spec.IsDeclaration(node.Type()) {
			count++
			return
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			walk(node.NamedChild(i))
		}
	}
	walk(n)
	return count
}

// fileState carries per-file context shared across the recursion.
type fileState struct {
	path    string
	lang    string
	spec    *LanguageSpec
	src     []byte
	lines   []int
	imports []importStmt
}

type importStmt struct {
	start int
	text  string
}

func (st *fileState) collectImports(root *sitter.Node) {
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if st.spec.ImportKinds[n.Type()] {
			st.imports = append(st.imports, importStmt{
				start: int(n.StartByte()),
				text:  n.Content(st.src),
			})
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	sort.Slice(st.imports, func(i, j int) bool { return st.imports[i].start < st.imports[j].start })
}

// importsAbove returns the raw import statements that appear before the
// given byte offset, i.e. the imports visible to a chunk ending there.
func (st *fileState) importsAbove(end int) []string {
	var out []string
	for _, im := range st.imports {
		if im.start < end {
			out = append(out, im.text)
		}
	}
	return out
}

// lineOffsets returns the byte offset of the start of each line.
func lineOffsets(src []byte) []int {
	offsets := []int{0}
	for i, b := range src {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// lineAt returns the 1-based line number containing the byte offset.
func (st *fileState) lineAt(off int) int {
	if off < 0 {
		off = 0
	}
	i := sort.Search(len(st.lines), func(i int) bool { return st.lines[i] > off })
	return i
}

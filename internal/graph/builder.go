package graph

import (
	"errors"
	"sort"
	"strings"

	dgraph "github.com/dominikbraun/graph"
	"github.com/rs/zerolog/log"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/source"
)

// Graph is the assembled code knowledge graph. Traversal queries run
// against the directed graph; the flat node and edge tables back
// persistence and stats. The directed graph stores one edge per node
// pair, with every relation between the pair recorded as an attribute.
type Graph struct {
	dg      dgraph.Graph[string, *Node]
	nodes   map[string]*Node
	edges   []Edge
	edgeSet map[edgeKey]bool
}

// edgeKey identifies an edge independent of its call-site line, so a
// repeated call between the same pair stays a single edge.
type edgeKey struct {
	from, to, relation string
}

func newGraph() *Graph {
	return &Graph{
		dg:      dgraph.New(func(n *Node) string { return n.ID }, dgraph.Directed()),
		nodes:   make(map[string]*Node),
		edgeSet: make(map[edgeKey]bool),
	}
}

// Builder constructs a Graph from source files in two passes: declare every
// node first, then resolve call sites against the full symbol table.
type Builder struct {
	registry *chunker.Registry
}

// NewBuilder creates a builder using the grammars of the given registry.
func NewBuilder(r *chunker.Registry) *Builder {
	return &Builder{registry: r}
}

// Build parses the files and assembles the knowledge graph.
func (b *Builder) Build(files []source.FileRecord) *Graph {
	g := newGraph()
	ex := &extractor{registry: b.registry}

	all := make([]*fileFacts, 0, len(files))
	for _, f := range files {
		facts := ex.extract(f.RelPath, f.Language, []byte(f.Content))
		if facts == nil {
			continue
		}
		all = append(all, facts)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Path < all[j].Path })

	// Pass 1: nodes and structural edges.
	byQualified := make(map[string][]string)
	byName := make(map[string][]string)
	classIDs := make(map[string][]string)
	for _, facts := range all {
		g.addNode(&Node{ID: facts.Path, Kind: KindFile, Name: facts.Path, FilePath: facts.Path})

		for _, mod := range facts.Imports {
			g.addNode(&Node{ID: mod, Kind: KindExternalModule, Name: mod})
			g.addEdge(facts.Path, mod, RelImports, 0)
		}

		for _, d := range facts.Declarations {
			id := facts.Path + "::" + d.Qualified
			g.addNode(&Node{
				ID:        id,
				Kind:      d.Kind,
				Name:      d.Qualified,
				FilePath:  facts.Path,
				StartLine: d.StartLine,
				EndLine:   d.EndLine,
			})
			byQualified[d.Qualified] = append(byQualified[d.Qualified], id)
			byName[d.Name] = append(byName[d.Name], id)

			switch d.Kind {
			case KindMethod:
				g.addEdge(facts.Path+"::"+d.Class, id, RelHasMethod, 0)
			default:
				g.addEdge(facts.Path, id, RelDefines, 0)
			}
			if d.Kind == KindClass {
				classIDs[d.Name] = append(classIDs[d.Name], id)
			}
		}
	}

	// Inheritance resolves after every class is known.
	for _, facts := range all {
		for _, d := range facts.Declarations {
			if d.Kind != KindClass {
				continue
			}
			from := facts.Path + "::" + d.Qualified
			for _, base := range d.Bases {
				short := lastComponent(base)
				for _, target := range classIDs[short] {
					if target != from {
						g.addEdge(from, target, RelInheritsFrom, 0)
					}
				}
			}
		}
	}

	// Pass 2: call resolution. Exact qualified match first, then the last
	// dotted component, then imported modules. Anything else is dropped.
	for _, facts := range all {
		imported := make(map[string]bool, len(facts.Imports))
		for _, mod := range facts.Imports {
			imported[mod] = true
			imported[lastComponent(mod)] = true
		}
		for _, call := range facts.Calls {
			from := facts.Path
			if call.CallerQualified != "" {
				from = facts.Path + "::" + call.CallerQualified
			}
			callee := strings.TrimPrefix(call.Callee, "self.")
			callee = strings.TrimPrefix(callee, "cls.")

			if targets := byQualified[callee]; len(targets) > 0 {
				for _, to := range targets {
					g.addEdge(from, to, RelCalls, call.Line)
				}
				continue
			}
			if targets := byName[lastComponent(callee)]; len(targets) > 0 {
				for _, to := range targets {
					g.addEdge(from, to, RelCalls, call.Line)
				}
				continue
			}
			if first := firstComponent(callee); imported[first] {
				for mod := range imported {
					if mod == first || lastComponent(mod) == first {
						if _, ok := g.nodes[mod]; ok {
							g.addEdge(from, mod, RelCalls, call.Line)
						}
					}
				}
			}
		}
	}

	stats := g.Stats()
	log.Debug().
		Int("files", stats.Files).
		Int("nodes", stats.Nodes).
		Int("edges", stats.Edges).
		Msg("knowledge graph built")
	return g
}

func (g *Graph) addNode(n *Node) {
	if existing, ok := g.nodes[n.ID]; ok {
		// Prefer the richer record when the same ID shows up twice.
		if existing.StartLine == 0 && n.StartLine != 0 {
			*existing = *n
		}
		return
	}
	g.nodes[n.ID] = n
	if err := g.dg.AddVertex(n); err != nil && !errors.Is(err, dgraph.ErrVertexAlreadyExists) {
		log.Warn().Err(err).Str("node", n.ID).Msg("graph vertex rejected")
	}
}

func (g *Graph) addEdge(from, to, relation string, line int) {
	if _, ok := g.nodes[from]; !ok {
		return
	}
	if _, ok := g.nodes[to]; !ok {
		return
	}
	key := edgeKey{from: from, to: to, relation: relation}
	if g.edgeSet[key] {
		return
	}
	g.edgeSet[key] = true
	g.edges = append(g.edges, Edge{From: from, To: to, Relation: relation, Line: line})

	// The relation name is the attribute key so a second relation between
	// the same pair merges into the existing directed edge.
	attr := dgraph.EdgeAttribute(relation, "1")
	err := g.dg.AddEdge(from, to, attr)
	if errors.Is(err, dgraph.ErrEdgeAlreadyExists) {
		err = g.dg.UpdateEdge(from, to, attr)
	}
	if err != nil {
		log.Warn().Err(err).Str("from", from).Str("to", to).Msg("graph edge rejected")
	}
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges sorted by (from, to, relation).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Relation < out[j].Relation
	})
	return out
}

// Stats summarises the graph for health reporting.
type Stats struct {
	Files           int
	Classes         int
	Functions       int
	Methods         int
	ExternalModules int
	Nodes           int
	Edges           int
}

func (g *Graph) Stats() Stats {
	s := Stats{Nodes: len(g.nodes), Edges: len(g.edges)}
	for _, n := range g.nodes {
		switch n.Kind {
		case KindFile:
			s.Files++
		case KindClass:
			s.Classes++
		case KindFunction:
			s.Functions++
		case KindMethod:
			s.Methods++
		case KindExternalModule:
			s.ExternalModules++
		}
	}
	return s
}

func lastComponent(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func firstComponent(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

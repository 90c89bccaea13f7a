package graph

import (
	"sort"
	"strings"
)

// maxChainDepth bounds call-chain searches so a cyclic or very dense graph
// cannot stall an agent turn.
const maxChainDepth = 12

// Resolve finds the nodes a user-supplied symbol refers to. It tries, in
// order: exact node ID, exact qualified name, then bare-name match. Results
// are sorted by ID.
func (g *Graph) Resolve(symbol string) []*Node {
	if n, ok := g.nodes[symbol]; ok {
		return []*Node{n}
	}
	var exact, loose []*Node
	short := lastComponent(symbol)
	for _, n := range g.nodes {
		if n.Kind == KindFile || n.Kind == KindExternalModule {
			continue
		}
		switch {
		case n.Name == symbol:
			exact = append(exact, n)
		case lastComponent(n.Name) == short:
			loose = append(loose, n)
		}
	}
	out := exact
	if len(out) == 0 {
		out = loose
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Callers returns the nodes that call the given node, sorted by ID.
func (g *Graph) Callers(id string) []*Node {
	pred, err := g.dg.PredecessorMap()
	if err != nil {
		return nil
	}
	var ids []string
	for from, e := range pred[id] {
		if e.Properties.Attributes[RelCalls] != "" {
			ids = append(ids, from)
		}
	}
	return g.resolveIDs(ids)
}

// Callees returns the nodes the given node calls, sorted by ID.
func (g *Graph) Callees(id string) []*Node {
	adj, err := g.dg.AdjacencyMap()
	if err != nil {
		return nil
	}
	var ids []string
	for to, e := range adj[id] {
		if e.Properties.Attributes[RelCalls] != "" {
			ids = append(ids, to)
		}
	}
	return g.resolveIDs(ids)
}

func (g *Graph) resolveIDs(ids []string) []*Node {
	seen := make(map[string]bool, len(ids))
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CallChain finds the shortest call path from one node to another by BFS
// over call edges, bounded by maxChainDepth. Returns nil when no path
// exists within the bound.
func (g *Graph) CallChain(fromID, toID string) []*Node {
	if _, ok := g.nodes[fromID]; !ok {
		return nil
	}
	if _, ok := g.nodes[toID]; !ok {
		return nil
	}
	if fromID == toID {
		return []*Node{g.nodes[fromID]}
	}
	adj, err := g.dg.AdjacencyMap()
	if err != nil {
		return nil
	}

	type item struct {
		id    string
		depth int
	}
	prev := map[string]string{fromID: ""}
	queue := []item{{id: fromID}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxChainDepth {
			continue
		}
		var next []string
		for nb, e := range adj[cur.id] {
			if e.Properties.Attributes[RelCalls] != "" {
				next = append(next, nb)
			}
		}
		sort.Strings(next)
		for _, nb := range next {
			if _, seen := prev[nb]; seen {
				continue
			}
			prev[nb] = cur.id
			if nb == toID {
				return g.path(prev, toID)
			}
			queue = append(queue, item{id: nb, depth: cur.depth + 1})
		}
	}
	return nil
}

func (g *Graph) path(prev map[string]string, end string) []*Node {
	var ids []string
	for id := end; id != ""; id = prev[id] {
		ids = append(ids, id)
	}
	out := make([]*Node, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if n, ok := g.nodes[ids[i]]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Neighbors returns the structural neighbourhood of a node: everything one
// edge away regardless of relation, sorted by ID. Used by retrieval to pull
// in related definitions.
func (g *Graph) Neighbors(id string) []*Node {
	adj, err := g.dg.AdjacencyMap()
	if err != nil {
		return nil
	}
	pred, err := g.dg.PredecessorMap()
	if err != nil {
		return nil
	}
	var ids []string
	for to := range adj[id] {
		ids = append(ids, to)
	}
	for from := range pred[id] {
		ids = append(ids, from)
	}
	return g.resolveIDs(ids)
}

// ShortName trims the file prefix from a node ID for display.
func ShortName(id string) string {
	if i := strings.Index(id, "::"); i >= 0 {
		return id[i+2:]
	}
	return id
}

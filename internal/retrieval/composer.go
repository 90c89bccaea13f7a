// Package retrieval composes the context handed to the model: vector
// search, file-type rerank, optional cross-encoder rerank, optional
// multi-query expansion, and knowledge-graph neighbourhood expansion.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/graph"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/llm"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/vectordb"
)

const (
	// maxGraphNeighbors is how many pseudo-chunks graph expansion may add
	// per retrieved result.
	maxGraphNeighbors = 2
	// maxNeighborBytes caps the size of a graph pseudo-chunk.
	maxNeighborBytes = 20 * 1024
	// multiQueryVariants is how many reformulations are requested.
	multiQueryVariants = 2
)

// Result is one piece of retrieved context.
type Result struct {
	ID       string
	FilePath string
	Content  string
	Metadata map[string]string
	Score    float64
	Priority int
	// FromGraph marks pseudo-chunks added by graph expansion rather than
	// vector search.
	FromGraph bool
}

// Options tune the composer.
type Options struct {
	K               int  // kNN candidates
	TopK            int  // results kept after reranking
	UseCrossEncoder bool
	UseMultiQuery   bool
}

// Composer runs the retrieval pipeline. Graph, cross-encoder and chat
// client are optional; each missing piece just disables its stage.
type Composer struct {
	store    vectordb.Store
	embedder llm.Embedder
	graph    *graph.Graph
	encoder  CrossEncoder
	chat     llm.ChatClient
	readFile func(path string) ([]byte, error)
	opts     Options
}

// NewComposer wires the retrieval pipeline. readFile resolves a repository
// relative path to its content for graph pseudo-chunks; nil disables graph
// expansion.
func NewComposer(store vectordb.Store, embedder llm.Embedder, g *graph.Graph, encoder CrossEncoder, chat llm.ChatClient, readFile func(string) ([]byte, error), opts Options) *Composer {
	if opts.K <= 0 {
		opts.K = 10
	}
	if opts.TopK <= 0 || opts.TopK > opts.K {
		opts.TopK = 5
	}
	return &Composer{
		store:    store,
		embedder: embedder,
		graph:    g,
		encoder:  encoder,
		chat:     chat,
		readFile: readFile,
		opts:     opts,
	}
}

// Retrieve returns the context for a query, best first. The pipeline is
// kNN → file-type rerank → optional cross-encoder rerank → truncation to
// TopK → graph expansion appended after the reranked results.
func (c *Composer) Retrieve(ctx context.Context, query string) ([]Result, error) {
	hits, err := c.search(ctx, query)
	if err != nil {
		return nil, err
	}
	if c.opts.UseMultiQuery && c.chat != nil {
		hits = c.expandQueries(ctx, query, hits)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:       h.ID,
			FilePath: h.FilePath,
			Content:  h.Content,
			Metadata: h.Metadata,
			Score:    h.Score,
			Priority: filePriority(h.FilePath),
		})
	}

	// File-type priority first, similarity as tie-break within a tier.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Priority != results[j].Priority {
			return results[i].Priority > results[j].Priority
		}
		return results[i].Score > results[j].Score
	})

	if c.opts.UseCrossEncoder && c.encoder != nil {
		results = c.crossRerank(ctx, query, results)
	}
	if len(results) > c.opts.TopK {
		results = results[:c.opts.TopK]
	}

	results = append(results, c.expandGraph(results)...)
	return results, nil
}

func (c *Composer) search(ctx context.Context, query string) ([]vectordb.Hit, error) {
	embs, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := c.store.Search(ctx, embs[0], c.opts.K)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

// expandQueries asks the chat model for reformulations of the question,
// searches each, and merges the hits keeping the best score per document.
// Failures here never fail retrieval.
func (c *Composer) expandQueries(ctx context.Context, query string, hits []vectordb.Hit) []vectordb.Hit {
	prompt := fmt.Sprintf(
		"Rewrite the following question about a codebase as %d alternative search queries that use different wording. Reply with one query per line and nothing else.\n\nQuestion: %s",
		multiQueryVariants, query,
	)
	reply, err := c.chat.Chat(ctx, []llm.Message{llm.UserMessage(prompt)}, nil)
	if err != nil {
		log.Warn().Err(err).Msg("multi-query expansion failed")
		return hits
	}

	best := make(map[string]vectordb.Hit, len(hits))
	order := make([]string, 0, len(hits))
	add := func(hs []vectordb.Hit) {
		for _, h := range hs {
			if prev, ok := best[h.ID]; ok {
				if h.Score > prev.Score {
					best[h.ID] = h
				}
				continue
			}
			best[h.ID] = h
			order = append(order, h.ID)
		}
	}
	add(hits)

	for _, line := range strings.Split(reply.Content, "\n") {
		variant := strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if variant == "" || variant == query {
			continue
		}
		more, err := c.search(ctx, variant)
		if err != nil {
			log.Warn().Err(err).Str("variant", variant).Msg("variant search failed")
			continue
		}
		add(more)
	}

	out := make([]vectordb.Hit, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// crossRerank rescores the candidates with the cross-encoder and reorders
// by its scores. On error the priority ordering stands.
func (c *Composer) crossRerank(ctx context.Context, query string, results []Result) []Result {
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Content
	}
	scores, err := c.encoder.Rerank(ctx, query, docs)
	if err != nil {
		log.Warn().Err(err).Msg("cross-encoder unavailable, keeping priority order")
		return results
	}
	for i := range results {
		results[i].Score = scores[i]
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

// expandGraph adds up to two neighbour pseudo-chunks per reranked result,
// skipping anything already retrieved and any neighbour over 20KB. The
// additions are appended after the reranked results and never displace
// them.
func (c *Composer) expandGraph(results []Result) []Result {
	if c.graph == nil || c.readFile == nil {
		return nil
	}
	seen := make(map[string]bool, len(results))
	seenFiles := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.ID] = true
		seenFiles[r.FilePath] = true
	}

	var extra []Result
	for _, r := range results {
		added := 0
		for _, nodeID := range c.relatedNodes(r) {
			if added >= maxGraphNeighbors {
				break
			}
			node, ok := c.graph.Node(nodeID)
			if !ok || node.FilePath == "" || seenFiles[node.FilePath] {
				continue
			}
			content := c.nodeContent(node)
			if content == "" || len(content) > maxNeighborBytes {
				continue
			}
			id := "graph::" + node.ID
			if seen[id] {
				continue
			}
			seen[id] = true
			seenFiles[node.FilePath] = true
			extra = append(extra, Result{
				ID:        id,
				FilePath:  node.FilePath,
				Content:   content,
				Metadata:  map[string]string{"kind": node.Kind, "name": node.Name},
				Priority:  filePriority(node.FilePath),
				FromGraph: true,
			})
			added++
		}
	}
	return extra
}

// relatedNodes finds the graph nodes connected to a retrieved chunk via
// the symbols it defines, falling back to its file node.
func (c *Composer) relatedNodes(r Result) []string {
	var ids []string
	push := func(nodes []*graph.Node) {
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
	}
	if symbols := r.Metadata["symbols"]; symbols != "" {
		for _, sym := range strings.Split(symbols, ",") {
			sym = strings.TrimSpace(sym)
			if sym == "" {
				continue
			}
			for _, n := range c.graph.Resolve(sym) {
				push(c.graph.Callers(n.ID))
				push(c.graph.Callees(n.ID))
			}
		}
	}
	if len(ids) == 0 {
		push(c.graph.Neighbors(r.FilePath))
	}
	return ids
}

// nodeContent extracts the node's line span from its file.
func (c *Composer) nodeContent(node *graph.Node) string {
	data, err := c.readFile(node.FilePath)
	if err != nil {
		return ""
	}
	if node.StartLine == 0 {
		return string(data)
	}
	lines := strings.Split(string(data), "\n")
	start, end := node.StartLine-1, node.EndLine
	if start < 0 || start >= len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}

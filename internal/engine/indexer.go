package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/graph"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/merkle"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/source"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/vectordb"
)

// IndexStats reports one indexing run.
type IndexStats struct {
	Handler      string
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int
	FilesDeleted int
	Chunks       int
	Incremental  bool
	Graph        graph.Stats
}

// Index acquires the descriptor, diffs it against the stored snapshot, and
// brings the vector store and knowledge graph up to date. With incremental
// indexing enabled only changed files are re-chunked and re-embedded.
func (e *Engine) Index(ctx context.Context, descriptor string) (*IndexStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acq := &source.Acquirer{
		Workdir:       filepath.Join(e.opts.PersistDir, "sources"),
		Policy:        e.policy,
		MaxFileSizeMB: e.opts.MaxFileSizeMB,
	}
	res, err := acq.Acquire(ctx, descriptor)
	if err != nil {
		return nil, fmt.Errorf("acquire %q: %w", descriptor, err)
	}
	e.root = res.Root
	if err := os.MkdirAll(e.opts.PersistDir, 0o755); err != nil {
		return nil, fmt.Errorf("create persist dir: %w", err)
	}
	if err := os.WriteFile(e.rootPath(), []byte(res.Root), 0o644); err != nil {
		log.Warn().Err(err).Msg("source root not persisted")
	}

	fresh, err := merkle.Build(res.Root, e.policy)
	if err != nil {
		return nil, fmt.Errorf("snapshot source tree: %w", err)
	}
	var old *merkle.Tree
	// A fallback store started empty, so a surviving snapshot must not
	// suppress re-embedding.
	incremental := e.opts.EnableIncremental && !e.storeFallback
	if e.storeFallback && e.opts.EnableIncremental {
		log.Warn().Msg("vector store fell back to the secondary backend, forcing a full re-index")
	}
	if incremental {
		old = merkle.LoadSnapshot(e.snapshotPath())
	}
	changes := merkle.Diff(old, fresh)

	stats := &IndexStats{
		Handler:      res.Handler,
		FilesTotal:   len(res.Files),
		FilesSkipped: len(changes.Unchanged),
		FilesDeleted: len(changes.Deleted),
		Incremental:  incremental && old != nil,
	}

	// Stale chunks go first so a crash re-indexes rather than serving
	// deleted code.
	for _, path := range changes.Stale() {
		if err := e.store.DeleteByFile(ctx, e.alias(path)); err != nil {
			return nil, fmt.Errorf("drop stale chunks for %s: %w", path, err)
		}
	}

	byPath := make(map[string]source.FileRecord, len(res.Files))
	for _, f := range res.Files {
		byPath[f.RelPath] = f
	}
	var work []source.FileRecord
	for _, path := range changes.Reindex() {
		if f, ok := byPath[path]; ok {
			work = append(work, f)
		}
	}

	docs, err := e.chunkFiles(ctx, work)
	if err != nil {
		return nil, err
	}
	stats.FilesIndexed = len(work)
	stats.Chunks = len(docs)

	if len(docs) > 0 {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.embedText
		}
		embeddings, err := vectordb.EmbedBatches(ctx, e.embedder, texts, e.opts.EmbedBatchSize)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		out := make([]vectordb.Document, len(docs))
		for i, d := range docs {
			d.doc.Embedding = embeddings[i]
			out[i] = d.doc
		}
		if err := e.store.Upsert(ctx, out); err != nil {
			return nil, fmt.Errorf("store chunks: %w", err)
		}
	}

	// The graph is rebuilt from the full tree each run: cheap relative to
	// embedding, and call edges cross file boundaries.
	e.graph = graph.NewBuilder(e.registry).Build(res.Files)
	if err := e.graph.Save(e.graphPath()); err != nil {
		return nil, fmt.Errorf("save graph: %w", err)
	}
	stats.Graph = e.graph.Stats()

	if err := fresh.Save(e.snapshotPath()); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	e.fingerprint = fresh.RootHash
	if e.obfuscator != nil {
		if err := e.obfuscator.Save(); err != nil {
			return nil, fmt.Errorf("save path mapping: %w", err)
		}
	}

	log.Info().
		Int("files_indexed", stats.FilesIndexed).
		Int("files_skipped", stats.FilesSkipped).
		Int("files_deleted", stats.FilesDeleted).
		Int("chunks", stats.Chunks).
		Bool("incremental", stats.Incremental).
		Msg("index complete")
	return stats, nil
}

// pendingDoc pairs a store document with the text to embed for it.
type pendingDoc struct {
	doc       vectordb.Document
	embedText string
}

// chunkFiles runs the structural chunker over the files with a worker
// pool, returning documents in deterministic path order.
func (e *Engine) chunkFiles(ctx context.Context, files []source.FileRecord) ([]pendingDoc, error) {
	workers := runtime.NumCPU()
	if workers > len(files) {
		workers = len(files)
	}
	if workers == 0 {
		return nil, nil
	}

	fileCh := make(chan source.FileRecord)
	var mu sync.Mutex
	var out []pendingDoc
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range fileCh {
				chunks, err := e.chunker.Chunk(f.RelPath, []byte(f.Content))
				if err != nil {
					log.Warn().Err(err).Str("file", f.RelPath).Msg("file skipped")
					continue
				}
				docs := make([]pendingDoc, 0, len(chunks))
				for _, c := range chunks {
					docs = append(docs, e.toDocument(f, c))
				}
				mu.Lock()
				out = append(out, docs...)
				mu.Unlock()
			}
		}()
	}

	for _, f := range files {
		select {
		case <-ctx.Done():
			close(fileCh)
			wg.Wait()
			return nil, ctx.Err()
		case fileCh <- f:
		}
	}
	close(fileCh)
	wg.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].doc.ID < out[j].doc.ID })
	return out, nil
}

// toDocument converts a chunk to its stored form, applying path aliasing
// when obfuscation is on.
func (e *Engine) toDocument(f source.FileRecord, c chunker.Chunk) pendingDoc {
	stored := e.alias(f.RelPath)
	meta := map[string]string{
		"kind":       c.Kind,
		"language":   c.Language,
		"start_line": strconv.Itoa(c.StartLine),
		"end_line":   strconv.Itoa(c.EndLine),
	}
	if c.Name != "" {
		meta["name"] = c.Name
	}
	if c.ParentContext != "" {
		meta["parent"] = c.ParentContext
	}
	if c.Complexity > 0 {
		meta["complexity"] = strconv.Itoa(c.Complexity)
	}
	if len(c.SymbolsDefined) > 0 {
		meta["symbols"] = strings.Join(c.SymbolsDefined, ",")
	}
	return pendingDoc{
		doc: vectordb.Document{
			ID:       fmt.Sprintf("%s_%d_%d", stored, c.StartByte, c.EndByte),
			FilePath: stored,
			Content:  c.Content,
			Metadata: meta,
		},
		embedText: stored + "\n\n" + c.Content,
	}
}

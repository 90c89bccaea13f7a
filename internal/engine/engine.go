// Package engine wires the full pipeline together: acquisition, chunking,
// embedding, the knowledge graph, retrieval and the answer loop, behind a
// small session API the commands call into.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/chunker/languages"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/config"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/graph"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/llm"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/merkle"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/ratelimit"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/retrieval"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/source"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/vectordb"
)

// Deps lets tests (and embedders of the engine) substitute the external
// pieces. Zero-value fields are built from configuration.
type Deps struct {
	Store    vectordb.Store
	Embedder llm.Embedder
	Chat     llm.ChatClient
	Encoder  retrieval.CrossEncoder
}

// Engine is one question-answering session over one indexed codebase.
type Engine struct {
	opts config.Options

	store         vectordb.Store
	storeFallback bool
	embedder      llm.Embedder
	chat          llm.ChatClient
	encoder       retrieval.CrossEncoder
	registry      *chunker.Registry
	chunker       *chunker.StructuralChunker
	policy        *source.ExcludePolicy
	obfuscator    *source.PathObfuscator
	cache         *ratelimit.ResponseCache
	scheduler     *ratelimit.Scheduler

	mu          sync.Mutex
	root        string // acquired source root, "" until Index ran or a snapshot loaded
	graph       *graph.Graph
	history     []llm.Message
	fingerprint string // merkle root hash of the indexed content
}

// New builds an engine from configuration, constructing real provider
// clients for anything Deps leaves nil.
func New(opts config.Options, deps Deps) (*Engine, error) {
	e := &Engine{
		opts:      opts,
		store:     deps.Store,
		embedder:  deps.Embedder,
		chat:      deps.Chat,
		encoder:   deps.Encoder,
		registry:  languages.Default(),
		policy:    source.NewExcludePolicy(opts.IgnorePatterns),
		scheduler: ratelimit.For(opts.ChatProvider),
	}
	e.chunker = chunker.New(e.registry, opts.ChunkMaxTokens)

	var err error
	if e.store == nil {
		e.store, e.storeFallback, err = vectordb.Open(opts.PersistDir, opts.Collection, opts.VectorBackend)
		if err != nil {
			return nil, fmt.Errorf("open vector store: %w", err)
		}
	}
	if e.embedder == nil {
		if e.embedder, err = llm.NewEmbedder(opts); err != nil {
			return nil, err
		}
	}
	if e.chat == nil {
		if e.chat, err = llm.NewChatClient(opts); err != nil {
			return nil, err
		}
	}
	if e.encoder == nil && opts.CrossEncoderEnabled {
		e.encoder = retrieval.NewHTTPCrossEncoder(opts.CrossEncoderURL)
	}
	if opts.EnablePathObfuscation {
		e.obfuscator, err = source.NewPathObfuscator(filepath.Join(opts.PersistDir, "paths.json"))
		if err != nil {
			return nil, fmt.Errorf("init path obfuscation: %w", err)
		}
	}
	if e.cache, err = ratelimit.NewResponseCache(opts.CacheTTL); err != nil {
		return nil, fmt.Errorf("init response cache: %w", err)
	}

	// A previously built graph can serve questions before the next index.
	if g, err := graph.Load(e.graphPath()); err == nil {
		e.graph = g
	}
	if root, err := os.ReadFile(e.rootPath()); err == nil {
		e.root = string(root)
	}
	if t := merkle.LoadSnapshot(e.snapshotPath()); t != nil {
		e.fingerprint = t.RootHash
	}
	return e, nil
}

func (e *Engine) graphPath() string {
	return filepath.Join(e.opts.PersistDir, "ast_graph.graphml")
}

func (e *Engine) rootPath() string {
	return filepath.Join(e.opts.PersistDir, "source_root")
}

func (e *Engine) snapshotPath() string {
	return merkle.SnapshotPath(e.opts.PersistDir, e.opts.Collection)
}

// alias maps a repository path to its stored form.
func (e *Engine) alias(rel string) string {
	if e.obfuscator == nil {
		return rel
	}
	return e.obfuscator.Obfuscate(rel)
}

// unalias maps a stored path back to the repository path.
func (e *Engine) unalias(stored string) string {
	if e.obfuscator == nil {
		return stored
	}
	return e.obfuscator.Deobfuscate(stored)
}

// readRepoFile resolves a stored (possibly aliased) path to file content
// under the acquired root.
func (e *Engine) readRepoFile(stored string) ([]byte, error) {
	if e.root == "" {
		return nil, fmt.Errorf("no source root acquired")
	}
	return os.ReadFile(filepath.Join(e.root, filepath.FromSlash(e.unalias(stored))))
}

// composer builds the retrieval pipeline against the current state.
func (e *Engine) composer() *retrieval.Composer {
	var chat llm.ChatClient
	if e.opts.EnableMultiQuery {
		chat = e.chat
	}
	return retrieval.NewComposer(e.store, e.embedder, e.graph, e.encoder, chat, e.readRepoFile, retrieval.Options{
		K:               e.opts.RetrievalK,
		TopK:            e.opts.RerankTopK,
		UseCrossEncoder: e.opts.CrossEncoderEnabled && e.opts.EnableReranking,
		UseMultiQuery:   e.opts.EnableMultiQuery,
	})
}

// Health reports the state of every subsystem.
type Health struct {
	Backend       string          `json:"backend"`
	StoreFallback bool            `json:"store_fallback"`
	Documents     int             `json:"documents"`
	Graph         graph.Stats     `json:"graph"`
	Scheduler     ratelimit.Stats `json:"scheduler"`
	SnapshotSaved bool            `json:"snapshot_saved"`
	Provider      string          `json:"provider"`
	Model         string          `json:"model"`
}

// Health inspects the persisted state without touching any provider.
func (e *Engine) Health(ctx context.Context) (*Health, error) {
	count, err := e.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	h := &Health{
		Backend:       e.store.Backend(),
		StoreFallback: e.storeFallback,
		Documents:     count,
		Scheduler:     e.scheduler.Stats(),
		Provider:      e.chat.Provider(),
		Model:         e.chat.Model(),
	}
	if e.graph != nil {
		h.Graph = e.graph.Stats()
	}
	if _, err := os.Stat(e.snapshotPath()); err == nil {
		h.SnapshotSaved = true
	}
	return h, nil
}

// Reset drops every artefact of the session: vector documents, snapshot,
// graph, history, caches and scheduler windows.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset vector store: %w", err)
	}
	for _, path := range []string{e.snapshotPath(), e.graphPath(), e.rootPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("artefact not removed")
		}
	}
	e.graph = nil
	e.history = nil
	e.fingerprint = ""
	e.cache.Clear()
	ratelimit.ResetAll()
	e.scheduler = ratelimit.For(e.opts.ChatProvider)
	log.Info().Msg("session reset")
	return nil
}

// ClearHistory drops the conversation without touching the index.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

// History returns a copy of the bounded conversation history.
func (e *Engine) History() []llm.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]llm.Message(nil), e.history...)
}

// Close releases the vector store.
func (e *Engine) Close() error {
	return e.store.Close()
}

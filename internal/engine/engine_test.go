package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/config"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/llm"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/ratelimit"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Model() string { return "fake-embed" }

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		// Length-derived vector so distinct chunks stay distinguishable.
		out[i] = []float32{float32(len(t)), float32(len(t) % 7), 1}
	}
	return out, nil
}

// scriptedChat pops canned replies in order. WithModel clones share the
// queue so fallback chains consume from the same script.
type scriptedChat struct {
	model   string
	replies *[]llm.Message
	errs    *[]error
	seen    *[][]llm.Message
}

func newScriptedChat(replies ...string) *scriptedChat {
	msgs := make([]llm.Message, len(replies))
	for i, r := range replies {
		msgs[i] = llm.Message{Role: llm.RoleAssistant, Content: r}
	}
	errs := make([]error, 0)
	return &scriptedChat{model: "scripted-1", replies: &msgs, errs: &errs, seen: &[][]llm.Message{}}
}

func (s *scriptedChat) Provider() string { return "ollama" }
func (s *scriptedChat) Model() string    { return s.model }

func (s *scriptedChat) WithModel(model string) llm.ChatClient {
	clone := *s
	clone.model = model
	return &clone
}

func (s *scriptedChat) Chat(_ context.Context, messages []llm.Message, _ []llm.Tool) (llm.Message, error) {
	*s.seen = append(*s.seen, messages)
	if len(*s.errs) > 0 {
		err := (*s.errs)[0]
		*s.errs = (*s.errs)[1:]
		if err != nil {
			return llm.Message{}, err
		}
	}
	if len(*s.replies) == 0 {
		return llm.Message{}, errors.New("script exhausted")
	}
	reply := (*s.replies)[0]
	if len(*s.replies) > 1 {
		*s.replies = (*s.replies)[1:]
	}
	return reply, nil
}

func testOptions(t *testing.T) config.Options {
	t.Helper()
	return config.Options{
		ChatProvider:      "ollama",
		EmbeddingProvider: "ollama",
		VectorBackend:     "chromem",
		PersistDir:        t.TempDir(),
		Collection:        "test",
		ChunkMaxTokens:    200,
		EnableIncremental: true,
		MaxFileSizeMB:     5,
		EmbedBatchSize:    8,
		RetrievalK:        5,
		RerankTopK:        3,
		UseAgent:          false,
		RecursionLimit:    5,
		HistoryLimit:      6,
		CacheTTL:          time.Minute,
		LogLevel:          "error",
	}
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"app.py": "import helpers\n\n" +
			"def handle(request):\n    return helpers.slugify(request.path)\n",
		"helpers.py": "def slugify(text):\n    return text.lower().replace(' ', '-')\n",
		"README.md":  "# demo\n\nA tiny service.\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newTestEngine(t *testing.T, opts config.Options, chat llm.ChatClient) *Engine {
	t.Helper()
	ratelimit.ResetAll()
	e, err := New(opts, Deps{Embedder: fakeEmbedder{}, Chat: chat})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestIndexBuildsStoreAndGraph(t *testing.T) {
	opts := testOptions(t)
	e := newTestEngine(t, opts, newScriptedChat("ok"))

	stats, err := e.Index(context.Background(), writeCorpus(t))
	require.NoError(t, err)
	require.Equal(t, "directory", stats.Handler)
	require.Equal(t, 3, stats.FilesTotal)
	require.Equal(t, 3, stats.FilesIndexed)
	require.Greater(t, stats.Chunks, 0)
	require.Greater(t, stats.Graph.Nodes, 0)

	count, err := e.store.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, stats.Chunks, count)

	_, err = os.Stat(e.snapshotPath())
	require.NoError(t, err)
	_, err = os.Stat(e.graphPath())
	require.NoError(t, err)
}

func TestIncrementalReindexSkipsUnchanged(t *testing.T) {
	opts := testOptions(t)
	e := newTestEngine(t, opts, newScriptedChat("ok"))
	src := writeCorpus(t)

	_, err := e.Index(context.Background(), src)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(src, "helpers.py"),
		[]byte("def slugify(text):\n    return text.strip().lower()\n"), 0o644))

	stats, err := e.Index(context.Background(), src)
	require.NoError(t, err)
	require.True(t, stats.Incremental)
	require.Equal(t, 1, stats.FilesIndexed)
	require.Equal(t, 2, stats.FilesSkipped)
}

func TestStoreFallbackForcesFullReindex(t *testing.T) {
	opts := testOptions(t)
	e := newTestEngine(t, opts, newScriptedChat("ok"))
	src := writeCorpus(t)

	_, err := e.Index(context.Background(), src)
	require.NoError(t, err)

	// Simulate the primary backend dying between runs: the replacement
	// store is empty but the snapshot survived.
	require.NoError(t, e.store.Reset(context.Background()))
	e.storeFallback = true

	stats, err := e.Index(context.Background(), src)
	require.NoError(t, err)
	require.False(t, stats.Incremental)
	require.Equal(t, 3, stats.FilesIndexed)

	count, err := e.store.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, stats.Chunks, count)
}

func TestAskUsesRetrievalAndCaches(t *testing.T) {
	opts := testOptions(t)
	chat := newScriptedChat("slugify lowercases the path")
	e := newTestEngine(t, opts, chat)

	_, err := e.Index(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	ans, err := e.Ask(context.Background(), "what does slugify do?")
	require.NoError(t, err)
	require.Equal(t, "slugify lowercases the path", ans.Text)
	require.False(t, ans.Cached)
	require.False(t, ans.UsedAgent)
	require.NotEmpty(t, ans.Sources)

	again, err := e.Ask(context.Background(), "what does slugify do?")
	require.NoError(t, err)
	require.True(t, again.Cached)
	require.Len(t, *chat.seen, 1)
}

func TestRateLimitAdvancesFallbackChain(t *testing.T) {
	opts := testOptions(t)
	chat := newScriptedChat("answer from the second model")
	*chat.errs = append(*chat.errs, fmt.Errorf("ollama returned 429: %w", llm.ErrRateLimited))
	e := newTestEngine(t, opts, chat)

	_, err := e.Index(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	ans, err := e.Ask(context.Background(), "what does slugify do?")
	require.NoError(t, err)
	require.Equal(t, "answer from the second model", ans.Text)
	require.Equal(t, "llama3.1:8b", ans.Model)
}

func TestReindexInvalidatesCachedAnswers(t *testing.T) {
	opts := testOptions(t)
	chat := newScriptedChat("old answer", "new answer")
	e := newTestEngine(t, opts, chat)
	src := writeCorpus(t)

	_, err := e.Index(context.Background(), src)
	require.NoError(t, err)

	ans, err := e.Ask(context.Background(), "what does slugify do?")
	require.NoError(t, err)
	require.Equal(t, "old answer", ans.Text)

	require.NoError(t, os.WriteFile(filepath.Join(src, "helpers.py"),
		[]byte("def slugify(text):\n    return text.strip().lower()\n"), 0o644))
	_, err = e.Index(context.Background(), src)
	require.NoError(t, err)

	ans, err = e.Ask(context.Background(), "what does slugify do?")
	require.NoError(t, err)
	require.False(t, ans.Cached)
	require.Equal(t, "new answer", ans.Text)
}

func TestChatKeepsBoundedHistory(t *testing.T) {
	opts := testOptions(t)
	opts.HistoryLimit = 4
	e := newTestEngine(t, opts, newScriptedChat("first answer", "second answer", "third answer"))

	_, err := e.Index(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	for _, q := range []string{"one?", "two?", "three?"} {
		_, err := e.Chat(context.Background(), q)
		require.NoError(t, err)
	}
	history := e.History()
	require.Len(t, history, 4)
	require.Equal(t, "three?", history[2].Content)
	require.Equal(t, "third answer", history[3].Content)
}

func TestAgentAnswersWhenEnabled(t *testing.T) {
	opts := testOptions(t)
	opts.UseAgent = true
	e := newTestEngine(t, opts, newScriptedChat("the handler calls slugify"))

	_, err := e.Index(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	ans, err := e.Ask(context.Background(), "how is a request handled?")
	require.NoError(t, err)
	require.True(t, ans.UsedAgent)
	require.Equal(t, "the handler calls slugify", ans.Text)
}

func TestAgentFallsBackToLinearOnRecursionLimit(t *testing.T) {
	opts := testOptions(t)
	opts.UseAgent = true
	opts.RecursionLimit = 1
	chat := newScriptedChat("linear answer")
	// Every scripted turn requests a tool, so the one-step agent always
	// hits its limit and the engine degrades to retrieval.
	call := llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
		{ID: "1", Name: "list_files", Arguments: `{"path":"."}`},
	}}
	*chat.replies = append([]llm.Message{call, call}, *chat.replies...)
	e := newTestEngine(t, opts, chat)

	_, err := e.Index(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	ans, err := e.Ask(context.Background(), "what files exist?")
	require.NoError(t, err)
	require.False(t, ans.UsedAgent)
	require.Equal(t, "linear answer", ans.Text)
}

func TestAgentKeepsFinalTurnTextAtLimit(t *testing.T) {
	opts := testOptions(t)
	opts.UseAgent = true
	opts.RecursionLimit = 1
	chat := newScriptedChat("linear answer")
	// The single agent turn both requests a tool and explains itself;
	// that explanation must survive the tripped turn budget.
	call := llm.Message{
		Role:    llm.RoleAssistant,
		Content: "the handler lowercases the path via slugify",
		ToolCalls: []llm.ToolCall{
			{ID: "1", Name: "list_files", Arguments: `{"path":"."}`},
		},
	}
	*chat.replies = append([]llm.Message{call}, *chat.replies...)
	e := newTestEngine(t, opts, chat)

	_, err := e.Index(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	ans, err := e.Ask(context.Background(), "how is a request handled?")
	require.NoError(t, err)
	require.True(t, ans.UsedAgent)
	require.Equal(t, call.Content, ans.Text)
}

func TestAgentPromptCarriesRecentHistoryOnly(t *testing.T) {
	var history []llm.Message
	for i := 0; i < 10; i++ {
		history = append(history, llm.UserMessage(fmt.Sprintf("turn %d", i)))
	}
	msgs := buildAgentMessages("ollama", history, "latest question")
	require.Len(t, msgs, agentHistoryMessages+2)
	require.Equal(t, "turn 6", msgs[1].Content)
	require.Equal(t, "latest question", msgs[len(msgs)-1].Content)
}

func TestResetClearsEverything(t *testing.T) {
	opts := testOptions(t)
	e := newTestEngine(t, opts, newScriptedChat("answer"))

	_, err := e.Index(context.Background(), writeCorpus(t))
	require.NoError(t, err)
	_, err = e.Chat(context.Background(), "anything?")
	require.NoError(t, err)

	require.NoError(t, e.Reset(context.Background()))

	count, err := e.store.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
	require.Empty(t, e.History())
	_, err = os.Stat(e.snapshotPath())
	require.True(t, os.IsNotExist(err))

	h, err := e.Health(context.Background())
	require.NoError(t, err)
	require.Zero(t, h.Documents)
	require.False(t, h.SnapshotSaved)
}

func TestHealthReportsState(t *testing.T) {
	opts := testOptions(t)
	e := newTestEngine(t, opts, newScriptedChat("ok"))

	_, err := e.Index(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	h, err := e.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "chromem", h.Backend)
	require.Greater(t, h.Documents, 0)
	require.Greater(t, h.Graph.Nodes, 0)
	require.True(t, h.SnapshotSaved)
	require.Equal(t, "ollama", h.Provider)
}

func TestPathObfuscationHidesSources(t *testing.T) {
	opts := testOptions(t)
	opts.EnablePathObfuscation = true
	e := newTestEngine(t, opts, newScriptedChat("answer"))

	_, err := e.Index(context.Background(), writeCorpus(t))
	require.NoError(t, err)

	// Stored IDs carry aliases, but reported sources are real paths.
	ans, err := e.Ask(context.Background(), "what does slugify do?")
	require.NoError(t, err)
	require.Contains(t, ans.Sources, "helpers.py")
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/agent"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/llm"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/retrieval"
)

// Answer is the result of one question.
type Answer struct {
	Text      string
	Model     string
	Sources   []string
	Cached    bool
	UsedAgent bool
}

// Ask answers a single stateless question. Identical questions within the
// cache TTL are served from the response cache without touching a provider.
func (e *Engine) Ask(ctx context.Context, question string) (*Answer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if text, ok := e.cache.Get(e.chat.Provider(), e.chat.Model(), e.fingerprint, question); ok {
		return &Answer{Text: text, Model: e.chat.Model(), Cached: true}, nil
	}
	ans, err := e.answer(ctx, question, nil)
	if err != nil {
		return nil, err
	}
	e.cache.Set(e.chat.Provider(), e.chat.Model(), e.fingerprint, question, ans.Text)
	return ans, nil
}

// Chat answers a question inside the running conversation. History is
// bounded, and the exchange is recorded only after a successful answer, so
// a failed turn can be retried verbatim.
func (e *Engine) Chat(ctx context.Context, question string) (*Answer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.history) > e.opts.HistoryLimit {
		e.history = e.history[len(e.history)-e.opts.HistoryLimit:]
	}
	ans, err := e.answer(ctx, question, e.history)
	if err != nil {
		return nil, err
	}
	e.history = append(e.history, llm.UserMessage(question), llm.Message{Role: llm.RoleAssistant, Content: ans.Text})
	if len(e.history) > e.opts.HistoryLimit {
		e.history = e.history[len(e.history)-e.opts.HistoryLimit:]
	}
	return ans, nil
}

// answer runs the agentic loop when enabled, walking the provider's model
// fallback chain on rate limits, and degrades to single-shot retrieval
// when the agent cannot finish.
func (e *Engine) answer(ctx context.Context, question string, history []llm.Message) (*Answer, error) {
	provider := e.chat.Provider()
	models := llm.FallbackModels(provider, e.opts.Model)
	if len(models) == 0 {
		models = []string{e.chat.Model()}
	}

	if e.opts.UseAgent && e.root != "" {
		ans, err := e.askAgent(ctx, question, history, models)
		if err == nil {
			return ans, nil
		}
		if errors.Is(err, llm.ErrAllModelsExhausted) || ctx.Err() != nil {
			return nil, err
		}
		log.Warn().Err(err).Msg("agent failed, answering from retrieval")
	}
	return e.askLinear(ctx, question, history, models)
}

// askAgent runs the tool loop, trying each model of the fallback chain once
// more before giving up on it. Only rate limits advance the chain.
func (e *Engine) askAgent(ctx context.Context, question string, history []llm.Message, models []string) (*Answer, error) {
	sandbox, err := agent.NewSandbox(e.root)
	if err != nil {
		return nil, err
	}
	toolbox := &agent.Toolbox{Sandbox: sandbox, Composer: e.composer(), Graph: e.graph}
	msgs := buildAgentMessages(e.chat.Provider(), history, question)

	var lastErr error
	for _, model := range models {
		runner := agent.New(e.chat.WithModel(model), toolbox, e.scheduler, e.opts.RecursionLimit)
		for attempt := 0; attempt < 2; attempt++ {
			reply, err := runner.Run(ctx, msgs)
			if err == nil {
				return &Answer{Text: reply.Content, Model: model, UsedAgent: true}, nil
			}
			// A tripped turn budget still carries the model's final
			// reasoning turn; a non-empty one beats a single-shot retry.
			if errors.Is(err, agent.ErrRecursionLimit) && strings.TrimSpace(reply.Content) != "" {
				log.Warn().Str("model", model).Msg("turn budget exhausted, answering with the last model turn")
				return &Answer{Text: reply.Content, Model: model, UsedAgent: true}, nil
			}
			if ctx.Err() != nil {
				return nil, err
			}
			if llm.IsRateLimit(err) {
				log.Warn().Str("model", model).Msg("model rate limited, advancing fallback chain")
				lastErr = llm.ErrAllModelsExhausted
				break
			}
			lastErr = err
		}
		if !llm.IsRateLimit(lastErr) && !errors.Is(lastErr, llm.ErrAllModelsExhausted) {
			break
		}
	}
	if errors.Is(lastErr, llm.ErrAllModelsExhausted) {
		return nil, exhausted(models)
	}
	return nil, lastErr
}

// askLinear answers from a single retrieval pass, walking the same model
// fallback chain on rate limits.
func (e *Engine) askLinear(ctx context.Context, question string, history []llm.Message, models []string) (*Answer, error) {
	results, err := e.composer().Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	msgs := buildLinearMessages(e.chat.Provider(), results, history, question)

	for _, model := range models {
		if err := e.scheduler.WaitIfNeeded(ctx); err != nil {
			return nil, err
		}
		e.scheduler.Record()
		reply, err := e.chat.WithModel(model).Chat(ctx, msgs, nil)
		if err == nil {
			e.scheduler.RecordUsage(reply.Usage.PromptTokens, reply.Usage.CompletionTokens)
			return &Answer{Text: reply.Content, Model: model, Sources: e.sources(results)}, nil
		}
		if !llm.IsRateLimit(err) {
			return nil, fmt.Errorf("model %s: %w", model, err)
		}
		log.Warn().Str("model", model).Msg("model rate limited, advancing fallback chain")
	}
	return nil, exhausted(models)
}

func exhausted(models []string) error {
	return fmt.Errorf("%w: tried %s", llm.ErrAllModelsExhausted, strings.Join(models, ", "))
}

// Toolbox exposes the agent tool surface for out-of-process callers such
// as the MCP server.
func (e *Engine) Toolbox() (*agent.Toolbox, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.root == "" {
		return nil, fmt.Errorf("no indexed codebase: run index first")
	}
	sandbox, err := agent.NewSandbox(e.root)
	if err != nil {
		return nil, err
	}
	return &agent.Toolbox{Sandbox: sandbox, Composer: e.composer(), Graph: e.graph}, nil
}

// sources lists the distinct repository paths behind the retrieved
// context, with any path aliasing undone.
func (e *Engine) sources(results []retrieval.Result) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range results {
		path := e.unalias(r.FilePath)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

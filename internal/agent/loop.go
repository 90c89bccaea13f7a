package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/llm"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/ratelimit"
)

// ErrRecursionLimit is returned when the model keeps requesting tools past
// the turn budget without producing an answer.
var ErrRecursionLimit = errors.New("agent recursion limit reached")

// transient-call retry delays, in order.
var retryDelays = []time.Duration{5 * time.Second, 10 * time.Second}

// Agent drives the reason/act loop: send the conversation, execute any
// requested tools, feed results back, repeat until the model answers in
// plain content or the recursion limit trips.
type Agent struct {
	chat      llm.ChatClient
	toolbox   *Toolbox
	scheduler *ratelimit.Scheduler
	limit     int

	sleep func(ctx context.Context, d time.Duration) error
}

// New builds an agent. limit bounds the number of model turns.
func New(chat llm.ChatClient, toolbox *Toolbox, scheduler *ratelimit.Scheduler, limit int) *Agent {
	if limit <= 0 {
		limit = 20
	}
	return &Agent{
		chat:      chat,
		toolbox:   toolbox,
		scheduler: scheduler,
		limit:     limit,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// Run executes the loop over the given conversation and returns the final
// assistant message. Rate-limit errors propagate unwrapped so the caller
// can advance to a fallback model; other call failures are retried twice
// before giving up. When the turn budget runs out, the last assistant
// message is returned alongside ErrRecursionLimit so any reasoning text
// the model produced on its final turn is not lost.
func (a *Agent) Run(ctx context.Context, messages []llm.Message) (llm.Message, error) {
	tools := a.toolbox.Tools()
	msgs := append([]llm.Message(nil), messages...)

	var last llm.Message
	for turn := 0; turn < a.limit; turn++ {
		reply, err := a.callModel(ctx, msgs, tools)
		if err != nil {
			return llm.Message{}, err
		}
		last = reply

		if len(reply.ToolCalls) == 0 {
			return reply, nil
		}

		msgs = append(msgs, reply)
		for _, call := range reply.ToolCalls {
			log.Debug().Str("tool", call.Name).Str("args", call.Arguments).Msg("tool call")
			result := a.toolbox.Dispatch(ctx, call)
			msgs = append(msgs, llm.ToolResult(call, result))
		}
	}
	return last, fmt.Errorf("%w after %d turns", ErrRecursionLimit, a.limit)
}

// callModel paces one model turn through the scheduler and retries
// transient failures. Rate-limit errors are not retried here: pacing
// already spaced the request, so a 429 means the quota itself is gone and
// the caller should change models.
func (a *Agent) callModel(ctx context.Context, msgs []llm.Message, tools []llm.Tool) (llm.Message, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := a.scheduler.WaitIfNeeded(ctx); err != nil {
			return llm.Message{}, err
		}
		a.scheduler.Record()

		reply, err := a.chat.Chat(ctx, msgs, tools)
		if err == nil {
			a.scheduler.RecordUsage(reply.Usage.PromptTokens, reply.Usage.CompletionTokens)
			return reply, nil
		}
		if llm.IsRateLimit(err) || ctx.Err() != nil {
			return llm.Message{}, err
		}
		lastErr = err
		if attempt >= len(retryDelays) {
			return llm.Message{}, fmt.Errorf("model call failed after %d attempts: %w", attempt+1, lastErr)
		}
		delay := retryDelays[attempt]
		log.Warn().Err(err).Dur("retry_in", delay).Msg("model call failed, retrying")
		if serr := a.sleep(ctx, delay); serr != nil {
			return llm.Message{}, serr
		}
	}
}

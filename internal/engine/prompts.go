package engine

import (
	"fmt"
	"strings"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/llm"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/retrieval"
)

const agentSystemPrompt = `You are a code intelligence assistant answering questions about an indexed codebase. You have tools to search the code semantically, list and read files, and walk the call graph.

Work in steps: search or read until you have enough evidence, then answer. Reference specific file paths and symbol names. Ground every claim in code you actually retrieved; if the evidence is insufficient, say so. Do not generate new code unless explicitly asked.`

const linearSystemPrompt = `You are a code intelligence assistant. You answer questions about a codebase using the retrieved source code context provided below.

Focus on answering how, why, and where questions about the code. Explain architecture, data flow, and relationships between components. Reference specific file paths when relevant.

Keep answers concise and grounded in the provided context. If the context doesn't contain enough information to answer, say so.`

// linearChunkChars caps each context chunk in the single-shot prompt so
// low-TPM providers are not handed an oversized first turn.
const linearChunkChars = 1500

// providerStyle appends per-provider guidance. Smaller hosted models drift
// into verbosity without it.
var providerStyle = map[string]string{
	"groq":   "Be direct and keep the answer under a few paragraphs.",
	"gemini": "Prefer prose over bullet lists unless the answer is an enumeration.",
}

func systemPrompt(base, provider string) string {
	if style, ok := providerStyle[provider]; ok {
		return base + "\n\n" + style
	}
	return base
}

// buildLinearMessages assembles the single-shot RAG conversation: system
// prompt, retrieved context as a primed exchange, bounded history, then
// the question.
func buildLinearMessages(provider string, results []retrieval.Result, history []llm.Message, question string) []llm.Message {
	msgs := []llm.Message{llm.SystemMessage(systemPrompt(linearSystemPrompt, provider))}

	if len(results) > 0 {
		var b strings.Builder
		b.WriteString("Here is the relevant source code context:\n\n")
		for i, r := range results {
			origin := ""
			if r.FromGraph {
				origin = ", related via call graph"
			}
			content := r.Content
			if len(content) > linearChunkChars {
				content = content[:linearChunkChars] + "\n... (truncated)"
			}
			fmt.Fprintf(&b, "--- Chunk %d: %s%s ---\n", i+1, r.FilePath, origin)
			b.WriteString(content)
			b.WriteString("\n\n")
		}
		msgs = append(msgs, llm.UserMessage(b.String()))
		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: "I've reviewed the code context. What would you like to know?"})
	}

	msgs = append(msgs, history...)
	msgs = append(msgs, llm.UserMessage(question))
	return msgs
}

// agentHistoryMessages bounds the conversation carried into a tool loop.
// Older turns only add tokens to every tool round trip.
const agentHistoryMessages = 4

// buildAgentMessages assembles the tool-loop conversation with the most
// recent history turns.
func buildAgentMessages(provider string, history []llm.Message, question string) []llm.Message {
	msgs := []llm.Message{llm.SystemMessage(systemPrompt(agentSystemPrompt, provider))}
	if len(history) > agentHistoryMessages {
		history = history[len(history)-agentHistoryMessages:]
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.UserMessage(question))
	return msgs
}

package llm

import (
	"fmt"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/config"
)

// NewChatClient builds the chat client for the configured provider, using
// the first entry of the provider's fallback list when no model is set.
func NewChatClient(opts config.Options) (ChatClient, error) {
	models := FallbackModels(opts.ChatProvider, opts.Model)
	if len(models) == 0 {
		return nil, fmt.Errorf("no model configured for provider %q", opts.ChatProvider)
	}
	model := models[0]

	switch opts.ChatProvider {
	case "ollama":
		return NewOllama(opts.OllamaURL, model), nil
	case "openai", "gemini", "groq":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", opts.ChatProvider)
		}
		return NewOpenAICompatible(opts.ChatProvider, opts.BaseURL, opts.APIKey, model), nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", opts.ChatProvider)
	}
}

// NewEmbedder builds the embedder for the configured provider.
func NewEmbedder(opts config.Options) (Embedder, error) {
	switch opts.EmbeddingProvider {
	case "ollama":
		return NewOllamaEmbedder(opts.OllamaURL, opts.EmbeddingModel), nil
	case "openai", "gemini", "groq":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key", opts.EmbeddingProvider)
		}
		return NewOpenAIEmbedder(opts.EmbeddingProvider, opts.BaseURL, opts.APIKey, opts.EmbeddingModel), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.EmbeddingProvider)
	}
}

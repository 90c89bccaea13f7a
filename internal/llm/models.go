package llm

// Default chat models per provider, strongest first. When a model keeps
// hitting rate limits the answer pipeline advances down this list.
var fallbackModels = map[string][]string{
	"gemini": {
		"gemini-2.0-flash",
		"gemini-2.0-flash-lite",
		"gemini-1.5-flash",
	},
	"groq": {
		"llama-3.3-70b-versatile",
		"llama-3.1-8b-instant",
		"gemma2-9b-it",
	},
	"openai": {
		"gpt-4o-mini",
		"gpt-4o",
	},
	"ollama": {
		"qwen2.5-coder:7b",
		"llama3.1:8b",
	},
}

// FallbackModels returns the model sequence for a provider. A configured
// primary model is moved to the front; unknown providers get just the
// primary.
func FallbackModels(provider, primary string) []string {
	defaults := fallbackModels[provider]
	if primary == "" {
		if len(defaults) == 0 {
			return nil
		}
		return append([]string(nil), defaults...)
	}
	out := []string{primary}
	for _, m := range defaults {
		if m != primary {
			out = append(out, m)
		}
	}
	return out
}

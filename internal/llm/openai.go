package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Known OpenAI-compatible endpoints.
const (
	openAIBaseURL = "https://api.openai.com/v1"
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	groqBaseURL   = "https://api.groq.com/openai/v1"
)

// wireTool is the function-tool envelope shared by every provider.
type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

func wireTools(tools []Tool) []wireTool {
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		var wt wireTool
		wt.Type = "function"
		wt.Function.Name = t.Name
		wt.Function.Description = t.Description
		wt.Function.Parameters = t.Parameters
		out = append(out, wt)
	}
	return out
}

// OpenAIClient speaks the /chat/completions dialect. Gemini and Groq are
// served through their OpenAI-compatible endpoints with the same client.
type OpenAIClient struct {
	provider string
	baseURL  string
	apiKey   string
	model    string
	client   *http.Client
}

// NewOpenAICompatible creates a chat client for any OpenAI-dialect
// provider. An empty baseURL selects the provider's default endpoint.
func NewOpenAICompatible(provider, baseURL, apiKey, model string) *OpenAIClient {
	if baseURL == "" {
		switch provider {
		case "gemini":
			baseURL = geminiBaseURL
		case "groq":
			baseURL = groqBaseURL
		default:
			baseURL = openAIBaseURL
		}
	}
	return &OpenAIClient{
		provider: provider,
		baseURL:  baseURL,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *OpenAIClient) Provider() string { return c.provider }
func (c *OpenAIClient) Model() string    { return c.model }

func (c *OpenAIClient) WithModel(model string) ChatClient {
	clone := *c
	clone.model = model
	return &clone
}

type oaToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaMessage struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	Name       string       `json:"name,omitempty"`
}

type oaChatRequest struct {
	Model    string      `json:"model"`
	Messages []oaMessage `json:"messages"`
	Tools    []wireTool  `json:"tools,omitempty"`
}

type oaChatResponse struct {
	Choices []struct {
		Message oaMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, tools []Tool) (Message, error) {
	req := oaChatRequest{Model: c.model, Tools: wireTools(tools)}
	for _, m := range messages {
		om := oaMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, Name: m.Name}
		for _, tc := range m.ToolCalls {
			var otc oaToolCall
			otc.ID = tc.ID
			otc.Type = "function"
			otc.Function.Name = tc.Name
			otc.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		req.Messages = append(req.Messages, om)
	}

	var resp oaChatResponse
	if err := c.post(ctx, "/chat/completions", req, &resp); err != nil {
		return Message{}, err
	}
	if len(resp.Choices) == 0 {
		return Message{}, fmt.Errorf("%s returned no choices", c.provider)
	}

	choice := resp.Choices[0].Message
	out := Message{
		Role:    RoleAssistant,
		Content: choice.Content,
		Usage:   Usage{PromptTokens: resp.Usage.PromptTokens, CompletionTokens: resp.Usage.CompletionTokens},
	}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return apiError(c.provider, resp.StatusCode, respBody)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.provider, err)
	}
	return nil
}

// OpenAIEmbedder calls an OpenAI-dialect /embeddings endpoint.
type OpenAIEmbedder struct {
	client *OpenAIClient
}

// NewOpenAIEmbedder creates an embedder for any OpenAI-dialect provider.
func NewOpenAIEmbedder(provider, baseURL, apiKey, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: NewOpenAICompatible(provider, baseURL, apiKey, model)}
}

func (e *OpenAIEmbedder) Model() string { return e.client.model }

type oaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type oaEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp oaEmbedResponse
	if err := e.client.post(ctx, "/embeddings", oaEmbedRequest{Model: e.client.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

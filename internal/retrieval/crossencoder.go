package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CrossEncoder scores query-document pairs with a stronger model than the
// bi-encoder used for the initial kNN pass.
type CrossEncoder interface {
	// Rerank returns one relevance score per document, in input order.
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}

// HTTPCrossEncoder talks to a text-embeddings-inference style /rerank
// endpoint.
type HTTPCrossEncoder struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCrossEncoder points a cross-encoder client at the given base URL.
func NewHTTPCrossEncoder(baseURL string) *HTTPCrossEncoder {
	return &HTTPCrossEncoder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (c *HTTPCrossEncoder) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{Query: query, Texts: documents})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank returned %d: %s", resp.StatusCode, string(respBody))
	}

	var entries []rerankEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	scores := make([]float64, len(documents))
	for _, e := range entries {
		if e.Index >= 0 && e.Index < len(scores) {
			scores[e.Index] = e.Score
		}
	}
	return scores, nil
}

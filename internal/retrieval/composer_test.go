package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/retrieval"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/vectordb"
)

type stubStore struct {
	vectordb.Store
	hits []vectordb.Hit
}

func (s *stubStore) Search(context.Context, []float32, int) ([]vectordb.Hit, error) {
	return s.hits, nil
}

type stubEmbedder struct{}

func (stubEmbedder) Model() string { return "stub" }
func (stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type stubEncoder struct {
	scores []float64
	err    error
}

func (s *stubEncoder) Rerank(_ context.Context, _ string, docs []string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.scores[:len(docs)], nil
}

func hit(id, path string, score float64) vectordb.Hit {
	return vectordb.Hit{
		Document: vectordb.Document{
			ID:       id,
			FilePath: path,
			Content:  "content of " + id,
			Metadata: map[string]string{},
		},
		Score: score,
	}
}

func TestRetrievePrefersSourceOverDocs(t *testing.T) {
	store := &stubStore{hits: []vectordb.Hit{
		hit("readme", "README.md", 0.99),
		hit("impl", "internal/auth/login.go", 0.50),
		hit("test", "internal/auth/login_test.go", 0.80),
		hit("conf", "config.yaml", 0.90),
	}}
	c := retrieval.NewComposer(store, stubEmbedder{}, nil, nil, nil, nil, retrieval.Options{K: 10, TopK: 4})

	results, err := c.Retrieve(context.Background(), "how does login work?")
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, "impl", results[0].ID)
	assert.Equal(t, "test", results[1].ID)
	assert.Equal(t, "conf", results[2].ID)
	assert.Equal(t, "readme", results[3].ID)
}

func TestRetrievePrefersEntryPointsOverSource(t *testing.T) {
	store := &stubStore{hits: []vectordb.Hit{
		hit("doc", "notes.txt", 0.99),
		hit("util", "pkg/utils.py", 0.95),
		hit("main", "main.py", 0.40),
	}}
	c := retrieval.NewComposer(store, stubEmbedder{}, nil, nil, nil, nil, retrieval.Options{K: 10, TopK: 3})

	results, err := c.Retrieve(context.Background(), "where is the entry point?")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "main", results[0].ID)
	assert.Equal(t, "util", results[1].ID)
	assert.Equal(t, "doc", results[2].ID)
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	var hits []vectordb.Hit
	for i := 0; i < 10; i++ {
		hits = append(hits, hit(fmt.Sprintf("h%d", i), fmt.Sprintf("pkg/f%d.go", i), 1.0-float64(i)/10))
	}
	store := &stubStore{hits: hits}
	c := retrieval.NewComposer(store, stubEmbedder{}, nil, nil, nil, nil, retrieval.Options{K: 10, TopK: 5})

	results, err := c.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, "h0", results[0].ID)
}

func TestCrossEncoderReorders(t *testing.T) {
	store := &stubStore{hits: []vectordb.Hit{
		hit("a", "pkg/a.go", 0.9),
		hit("b", "pkg/b.go", 0.8),
	}}
	// Cross-encoder disagrees with the bi-encoder.
	enc := &stubEncoder{scores: []float64{0.1, 0.95}}
	c := retrieval.NewComposer(store, stubEmbedder{}, nil, enc, nil, nil,
		retrieval.Options{K: 10, TopK: 2, UseCrossEncoder: true})

	results, err := c.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].ID)
}

func TestCrossEncoderFailureDegrades(t *testing.T) {
	store := &stubStore{hits: []vectordb.Hit{
		hit("a", "pkg/a.go", 0.9),
		hit("b", "pkg/b.go", 0.8),
	}}
	enc := &stubEncoder{err: errors.New("connection refused")}
	c := retrieval.NewComposer(store, stubEmbedder{}, nil, enc, nil, nil,
		retrieval.Options{K: 10, TopK: 2, UseCrossEncoder: true})

	results, err := c.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
}

func TestRetrieveEmptyStore(t *testing.T) {
	c := retrieval.NewComposer(&stubStore{}, stubEmbedder{}, nil, nil, nil, nil, retrieval.Options{})
	results, err := c.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveDeterministic(t *testing.T) {
	store := &stubStore{hits: []vectordb.Hit{
		hit("a", "pkg/a.go", 0.9),
		hit("b", "pkg/b.go", 0.9),
		hit("c", "docs/c.md", 0.9),
	}}
	c := retrieval.NewComposer(store, stubEmbedder{}, nil, nil, nil, nil, retrieval.Options{K: 10, TopK: 3})

	first, err := c.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	second, err := c.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

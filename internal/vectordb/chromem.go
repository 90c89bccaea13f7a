package vectordb

import (
	"context"
	"fmt"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
)

// chromemStore is the pure-Go fallback backend. It trades ANN speed for
// zero native dependencies, which keeps the engine usable where cgo or the
// sqlite-vec extension is unavailable.
type chromemStore struct {
	db         *chromem.DB
	col        *chromem.Collection
	collection string
}

func openChromem(dir, collection string) (*chromemStore, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem: %w", err)
	}
	col, err := db.GetOrCreateCollection(collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collection, err)
	}
	return &chromemStore{db: db, col: col, collection: collection}, nil
}

func (s *chromemStore) Backend() string { return BackendChromem }

func (s *chromemStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	out := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		meta := make(map[string]string, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			meta[k] = v
		}
		meta["file_path"] = d.FilePath
		out = append(out, chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Embedding: d.Embedding,
			Metadata:  meta,
		})
	}
	if err := s.col.AddDocuments(ctx, out, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

func (s *chromemStore) DeleteByFile(ctx context.Context, filePath string) error {
	err := s.col.Delete(ctx, map[string]string{"file_path": filePath}, nil)
	if err != nil {
		return fmt.Errorf("delete by file %s: %w", filePath, err)
	}
	return nil
}

func (s *chromemStore) Search(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	total := s.col.Count()
	if total == 0 {
		return nil, nil
	}
	if k > total {
		k = total
	}
	results, err := s.col.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		meta := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		filePath := meta["file_path"]
		delete(meta, "file_path")
		hits = append(hits, Hit{
			Document: Document{
				ID:       r.ID,
				FilePath: filePath,
				Content:  r.Content,
				Metadata: meta,
			},
			Score: float64(r.Similarity),
		})
	}
	return hits, nil
}

func (s *chromemStore) Count(ctx context.Context) (int, error) {
	return s.col.Count(), nil
}

func (s *chromemStore) Reset(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	col, err := s.db.GetOrCreateCollection(s.collection, nil, nil)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.col = col
	return nil
}

func (s *chromemStore) Close() error { return nil }

// Package vectordb persists chunk embeddings. The primary backend is
// SQLite with the sqlite-vec extension; a pure-Go chromem backend serves
// as fallback when the native extension cannot be loaded.
package vectordb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Backend names accepted in configuration.
const (
	BackendSQLiteVec = "sqlite-vec"
	BackendChromem   = "chromem"
)

// Document is one chunk ready for storage. The ID is derived from the
// chunk's file path and byte range, so re-indexing an unchanged file
// produces the same IDs and upserts are idempotent.
type Document struct {
	ID        string
	FilePath  string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// Hit is a search result. Score is a similarity in [0, 1], higher is
// closer, regardless of backend.
type Hit struct {
	Document
	Score float64
}

// Store is the persistence interface both backends implement.
type Store interface {
	// Backend returns the backend name.
	Backend() string
	// Upsert writes documents, replacing any with the same ID.
	Upsert(ctx context.Context, docs []Document) error
	// DeleteByFile removes every document belonging to a file path.
	DeleteByFile(ctx context.Context, filePath string) error
	// Search returns the k nearest documents to the query embedding.
	Search(ctx context.Context, embedding []float32, k int) ([]Hit, error)
	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)
	// Reset drops all documents.
	Reset(ctx context.Context) error
	Close() error
}

// Open creates the requested backend under persistDir. When the primary
// sqlite-vec backend fails to initialise, it degrades to chromem and
// reports fallback=true so callers can surface the downgrade.
func Open(persistDir, collection, backend string) (store Store, fallback bool, err error) {
	if err := os.MkdirAll(persistDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create persist dir: %w", err)
	}
	switch backend {
	case BackendChromem:
		s, err := openChromem(chromemPath(persistDir), collection)
		return s, false, err
	case BackendSQLiteVec, "":
		s, err := openSQLiteVec(sqlitePath(persistDir, collection))
		if err == nil {
			return s, false, nil
		}
		log.Warn().Err(err).Msg("sqlite-vec unavailable, falling back to chromem")
		c, cerr := openChromem(chromemPath(persistDir), collection)
		if cerr != nil {
			return nil, false, fmt.Errorf("sqlite-vec failed (%v) and chromem failed: %w", err, cerr)
		}
		return c, true, nil
	default:
		return nil, false, fmt.Errorf("unknown vector backend %q", backend)
	}
}

func sqlitePath(persistDir, collection string) string {
	return filepath.Join(persistDir, collection+".sqlite3")
}

func chromemPath(persistDir string) string {
	return filepath.Join(persistDir, "chromem")
}

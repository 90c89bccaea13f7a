package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

const sqliteDDL = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS chunks (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    doc_id    TEXT NOT NULL UNIQUE,
    file_path TEXT NOT NULL,
    content   TEXT NOT NULL,
    metadata  TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// sqliteStore keeps chunk rows in a regular table and embeddings in a vec0
// virtual table keyed by the chunk rowid. The virtual table is created
// lazily on first upsert because its dimension comes from the embedding
// model, not from configuration.
type sqliteStore struct {
	db  *sql.DB
	dim int
}

func openSQLiteVec(path string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(sqliteDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	// Probe that the vec0 module is actually loaded.
	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec extension probe: %w", err)
	}

	s := &sqliteStore{db: db}
	if v, err := s.getMeta("dim"); err == nil && v != "" {
		fmt.Sscanf(v, "%d", &s.dim)
	}
	return s, nil
}

func (s *sqliteStore) Backend() string { return BackendSQLiteVec }

func (s *sqliteStore) ensureVecTable(dim int) error {
	if s.dim == dim {
		return nil
	}
	if s.dim != 0 {
		return fmt.Errorf("embedding dimension changed from %d to %d, reset required", s.dim, dim)
	}
	ddl := fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(chunk_id INTEGER PRIMARY KEY, embedding float[%d])",
		dim,
	)
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("create vec table: %w", err)
	}
	if err := s.setMeta("dim", fmt.Sprintf("%d", dim)); err != nil {
		return err
	}
	s.dim = dim
	return nil
}

func (s *sqliteStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.ensureVecTable(len(docs[0].Embedding)); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, d := range docs {
		if len(d.Embedding) != s.dim {
			return fmt.Errorf("document %s: embedding dimension %d, store has %d", d.ID, len(d.Embedding), s.dim)
		}
		// Replace any existing row for the same document.
		var oldID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM chunks WHERE doc_id = ?", d.ID).Scan(&oldID)
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_id = ?", oldID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", oldID); err != nil {
				return err
			}
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", d.ID, err)
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO chunks (doc_id, file_path, content, metadata) VALUES (?, ?, ?, ?)",
			d.ID, d.FilePath, d.Content, string(meta),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", d.ID, err)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		blob, err := sqlite_vec.SerializeFloat32(d.Embedding)
		if err != nil {
			return fmt.Errorf("serialize embedding for %s: %w", d.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)", rowID, blob); err != nil {
			return fmt.Errorf("insert embedding for %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) DeleteByFile(ctx context.Context, filePath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id FROM chunks WHERE file_path = ?", filePath)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks WHERE chunk_id = ?", id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", filePath); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Search(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	if s.dim == 0 {
		return nil, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.doc_id, c.file_path, c.content, c.metadata, v.distance
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		WHERE v.embedding MATCH ?
		ORDER BY v.distance
		LIMIT ?
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var meta string
		var distance float64
		if err := rows.Scan(&h.ID, &h.FilePath, &h.Content, &meta, &distance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &h.Metadata); err != nil {
			h.Metadata = map[string]string{}
		}
		h.Score = 1.0 / (1.0 + distance)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

func (s *sqliteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if s.dim != 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_chunks"); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) getMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *sqliteStore) setMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

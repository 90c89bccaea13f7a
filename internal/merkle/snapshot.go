package merkle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// SnapshotPath returns where the snapshot for a collection lives under the
// persistence directory.
func SnapshotPath(persistDir, collection string) string {
	return filepath.Join(persistDir, "snapshots", collection+"_snapshot.json")
}

// Save writes the tree as JSON, atomically: a temporary file is written
// first and renamed over the destination, so a crash mid-write leaves the
// previous snapshot intact.
func (t *Tree) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a previously saved tree. A missing or corrupt snapshot
// returns nil, which callers treat as "index everything".
func LoadSnapshot(path string) *Tree {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("snapshot unreadable, full reindex")
		}
		return nil
	}
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("snapshot corrupt, full reindex")
		return nil
	}
	if t.Nodes == nil {
		return nil
	}
	return &t
}

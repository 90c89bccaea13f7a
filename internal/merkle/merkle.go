// Package merkle maintains a content-addressed tree of an indexed codebase.
// Comparing the stored snapshot against a fresh build yields the exact set
// of files to re-embed, so unchanged files are never reprocessed.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/source"
)

// Node is one entry of the tree. File hashes cover content; directory
// hashes cover the sorted (name, hash) pairs of their children, so any
// change below a directory changes its hash.
type Node struct {
	Path     string   `json:"path"`
	Hash     string   `json:"hash"`
	IsDir    bool     `json:"is_dir,omitempty"`
	Children []string `json:"children,omitempty"`
}

// Tree is the full content-addressed tree keyed by relative path. The root
// directory uses ".".
type Tree struct {
	RootHash string           `json:"root_hash"`
	Nodes    map[string]*Node `json:"nodes"`
}

// Build walks root and hashes every file the exclude policy admits.
func Build(root string, policy *source.ExcludePolicy) (*Tree, error) {
	t := &Tree{Nodes: make(map[string]*Node)}
	dirs := map[string]map[string]string{".": {}} // dir → child name → hash

	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if rel == "." {
				return nil
			}
			name := de.Name()
			if de.IsDir() {
				if policy.SkipDir(name, rel) {
					return filepath.SkipDir
				}
				dirs[rel] = map[string]string{}
				return nil
			}
			if !de.IsRegular() || policy.SkipFile(name, rel) {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("hash %s: %w", rel, err)
			}
			sum := sha256.Sum256(data)
			t.Nodes[rel] = &Node{Path: rel, Hash: hex.EncodeToString(sum[:])}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	// Register each file and directory with its parent.
	for rel, n := range t.Nodes {
		parent := parentDir(rel)
		if _, ok := dirs[parent]; !ok {
			dirs[parent] = map[string]string{}
		}
		dirs[parent][baseName(rel)] = n.Hash
	}

	// Directory hashes bottom-up: deepest paths first.
	paths := make([]string, 0, len(dirs))
	for d := range dirs {
		paths = append(paths, d)
	}
	sort.Slice(paths, func(i, j int) bool {
		return strings.Count(paths[i], "/") > strings.Count(paths[j], "/") ||
			(strings.Count(paths[i], "/") == strings.Count(paths[j], "/") && paths[i] > paths[j])
	})
	for _, d := range paths {
		children := dirs[d]
		names := make([]string, 0, len(children))
		for name := range children {
			names = append(names, name)
		}
		sort.Strings(names)

		h := sha256.New()
		childPaths := make([]string, 0, len(names))
		for _, name := range names {
			fmt.Fprintf(h, "%s:%s\n", name, children[name])
			if d == "." {
				childPaths = append(childPaths, name)
			} else {
				childPaths = append(childPaths, d+"/"+name)
			}
		}
		sum := hex.EncodeToString(h.Sum(nil))
		t.Nodes[d] = &Node{Path: d, Hash: sum, IsDir: true, Children: childPaths}
		if d != "." {
			parent := parentDir(d)
			if _, ok := dirs[parent]; !ok {
				dirs[parent] = map[string]string{}
			}
			dirs[parent][baseName(d)] = sum
		}
	}
	t.RootHash = t.Nodes["."].Hash
	return t, nil
}

// ChangeSet lists file paths by how they differ between two trees.
type ChangeSet struct {
	Added     []string
	Modified  []string
	Deleted   []string
	Unchanged []string
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Reindex returns the files whose chunks must be rebuilt.
func (c ChangeSet) Reindex() []string {
	out := make([]string, 0, len(c.Added)+len(c.Modified))
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	sort.Strings(out)
	return out
}

// Stale returns the files whose existing chunks must be deleted.
func (c ChangeSet) Stale() []string {
	out := make([]string, 0, len(c.Modified)+len(c.Deleted))
	out = append(out, c.Modified...)
	out = append(out, c.Deleted...)
	sort.Strings(out)
	return out
}

// Diff compares an old snapshot against a fresh tree. Only file nodes are
// reported; directories exist to make the comparison cheap, not to be
// reindexed. A nil old tree marks everything added.
func Diff(old, fresh *Tree) ChangeSet {
	var c ChangeSet
	for path, n := range fresh.Nodes {
		if n.IsDir {
			continue
		}
		if old == nil {
			c.Added = append(c.Added, path)
			continue
		}
		prev, ok := old.Nodes[path]
		switch {
		case !ok || prev.IsDir:
			c.Added = append(c.Added, path)
		case prev.Hash != n.Hash:
			c.Modified = append(c.Modified, path)
		default:
			c.Unchanged = append(c.Unchanged, path)
		}
	}
	if old != nil {
		for path, n := range old.Nodes {
			if n.IsDir {
				continue
			}
			if fresh, ok := fresh.Nodes[path]; !ok || fresh.IsDir {
				c.Deleted = append(c.Deleted, path)
			}
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Modified)
	sort.Strings(c.Deleted)
	sort.Strings(c.Unchanged)
	return c
}

func parentDir(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return "."
}

func baseName(rel string) string {
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		return rel[i+1:]
	}
	return rel
}

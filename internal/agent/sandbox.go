// Package agent runs the tool-using answer loop: the model reasons, asks
// for tools, and the loop executes them inside a read-only sandbox rooted
// at the acquired repository.
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxReadBytes is the largest file read_file will return. Larger files
// must be approached through search instead of wholesale reads, which
// keeps tool results inside the model's context budget.
const maxReadBytes = 12000

// Sandbox confines tool file access to the repository root. Tool errors
// are returned as strings, not Go errors: the model is expected to read
// them and adjust, and a failed tool call must not abort the loop.
type Sandbox struct {
	root string
}

// NewSandbox roots a sandbox at dir.
func NewSandbox(dir string) (*Sandbox, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	return &Sandbox{root: abs}, nil
}

// Root returns the absolute sandbox root.
func (s *Sandbox) Root() string { return s.root }

// resolve maps a repository-relative path to an absolute one, refusing
// anything that escapes the root.
func (s *Sandbox) resolve(rel string) (string, bool) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		rel = "."
	}
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	abs = filepath.Clean(abs)
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

// ReadFile returns a file's content, or a model-facing error string.
func (s *Sandbox) ReadFile(rel string) string {
	abs, ok := s.resolve(rel)
	if !ok {
		return fmt.Sprintf("Access denied: %q is outside the repository.", rel)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Sprintf("Error: file %q not found.", rel)
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: %q is a directory, use list_files instead.", rel)
	}
	if info.Size() > maxReadBytes {
		return fmt.Sprintf("Error: file %q is %d bytes, larger than the %d byte read limit. Use search_codebase to find the relevant part.",
			rel, info.Size(), maxReadBytes)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Sprintf("Error reading %q: %v", rel, err)
	}
	return string(data)
}

// ListFiles returns the entries of a directory, directories suffixed with
// a slash, or a model-facing error string.
func (s *Sandbox) ListFiles(rel string) string {
	abs, ok := s.resolve(rel)
	if !ok {
		return fmt.Sprintf("Access denied: %q is outside the repository.", rel)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Sprintf("Error: directory %q not found.", rel)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "(empty directory)"
	}
	return strings.Join(names, "\n")
}

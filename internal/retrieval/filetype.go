package retrieval

import (
	"path/filepath"
	"strings"
)

// File-type priorities used for the first rerank pass. Entry points outrank
// ordinary implementation code, implementation code outranks tests, and
// prose documentation ranks last so an answer about behavior cites code
// before README text.
const (
	priorityEntry  = 100
	prioritySource = 80
	priorityTest   = 60
	priorityConfig = 50
	priorityOther  = 40
	priorityDoc    = 30
)

var entryBases = map[string]bool{
	"main": true, "app": true, "server": true, "index": true, "api": true,
}

var sourceExts = map[string]bool{
	".go": true, ".py": true, ".pyi": true,
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true,
	".java": true, ".rb": true, ".rs": true, ".c": true, ".h": true,
	".cpp": true, ".cc": true, ".cs": true, ".php": true, ".swift": true,
	".kt": true, ".scala": true, ".sh": true,
}

var configExts = map[string]bool{
	".yaml": true, ".yml": true, ".json": true, ".toml": true,
	".ini": true, ".cfg": true, ".conf": true, ".env": true,
}

var docExts = map[string]bool{
	".md": true, ".rst": true, ".txt": true, ".adoc": true,
}

// filePriority scores a path by what kind of file it is.
func filePriority(path string) int {
	base := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(base)

	if isTestPath(path, base) {
		return priorityTest
	}
	switch {
	case sourceExts[ext]:
		if entryBases[strings.TrimSuffix(base, ext)] {
			return priorityEntry
		}
		return prioritySource
	case configExts[ext] || base == "dockerfile" || base == "makefile":
		return priorityConfig
	case docExts[ext]:
		return priorityDoc
	default:
		return priorityOther
	}
}

func isTestPath(path, base string) bool {
	if strings.Contains(base, "_test.") || strings.HasPrefix(base, "test_") ||
		strings.Contains(base, ".test.") || strings.Contains(base, ".spec.") {
		return true
	}
	p := filepath.ToSlash(strings.ToLower(path))
	return strings.Contains(p, "/tests/") || strings.Contains(p, "/test/") ||
		strings.Contains(p, "/__tests__/") || strings.HasPrefix(p, "tests/") ||
		strings.HasPrefix(p, "test/")
}

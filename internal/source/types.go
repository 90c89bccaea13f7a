package source

import (
	"path/filepath"
	"strings"
)

// FileRecord is a readable file below the acquired root. Immutable after
// acquisition.
type FileRecord struct {
	AbsPath  string
	RelPath  string
	Content  string
	Language string
	Size     int64
}

var languageByExt = map[string]string{
	"py":   "python",
	"pyi":  "python",
	"js":   "javascript",
	"jsx":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"go":   "go",
	"java": "java",
	"rb":   "ruby",
	"rs":   "rust",
	"c":    "c",
	"h":    "c",
	"cpp":  "cpp",
	"md":   "markdown",
	"yaml": "yaml",
	"yml":  "yaml",
	"json": "json",
	"toml": "toml",
	"sh":   "shell",
}

// DetectLanguage returns a canonical language name for a path, or the bare
// extension when the language is not recognised.
func DetectLanguage(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return ext
}

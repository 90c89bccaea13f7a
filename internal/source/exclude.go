package source

import (
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Default exclude sets. Directories are matched by name anywhere in the
// tree; files by exact name; extensions with the leading dot.
var (
	excludeDirs = map[string]bool{
		".git": true, ".svn": true, ".hg": true, ".github": true,
		"__pycache__": true, ".pytest_cache": true, ".mypy_cache": true,
		".tox": true, ".ipynb_checkpoints": true,
		"node_modules": true, "vendor": true, "bower_components": true,
		"venv": true, ".venv": true, "env": true, ".env": true,
		"dist": true, "build": true, "target": true, ".dart_tool": true,
		".idea": true, ".vscode": true, ".codebase-agent": true,
		".egg-info": true, ".cache": true,
	}

	excludeFiles = map[string]bool{
		"package-lock.json": true, "yarn.lock": true, "pnpm-lock.yaml": true,
		"poetry.lock": true, "Pipfile.lock": true, "composer.lock": true,
		"Gemfile.lock": true, "Cargo.lock": true, "go.sum": true,
		".DS_Store": true, "Thumbs.db": true,
	}

	excludeExts = map[string]bool{
		".pyc": true, ".pyo": true, ".pyd": true, ".class": true,
		".o": true, ".obj": true, ".a": true,
		".so": true, ".dll": true, ".dylib": true, ".exe": true, ".bin": true,
		".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true, ".7z": true,
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
		".svg": true, ".bmp": true, ".webp": true,
		".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".wav": true,
		".pdf": true, ".docx": true, ".xlsx": true, ".pptx": true,
		".pkl": true, ".npy": true, ".npz": true, ".pt": true, ".pth": true,
		".onnx": true, ".parquet": true,
		".sqlite3": true, ".db": true, ".graphml": true,
		".min.js": true, ".min.css": true, ".map": true, ".lock": true,
	}
)

// ExcludePolicy decides which paths are dropped during acquisition and
// snapshotting. The same policy feeds both so that the content-addressed
// tree sees exactly the files the indexer sees.
type ExcludePolicy struct {
	globs []glob.Glob
}

// NewExcludePolicy compiles the user-supplied ignore patterns on top of the
// built-in sets. Invalid patterns are skipped.
func NewExcludePolicy(patterns []string) *ExcludePolicy {
	p := &ExcludePolicy{}
	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if g, err := glob.Compile(pat, '/'); err == nil {
			p.globs = append(p.globs, g)
		}
	}
	return p
}

// SkipDir reports whether a directory (by base name) is excluded.
func (p *ExcludePolicy) SkipDir(name, relPath string) bool {
	if excludeDirs[name] {
		return true
	}
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	return p.matchGlobs(relPath)
}

// SkipFile reports whether a file is excluded by name, extension, or a
// user pattern.
func (p *ExcludePolicy) SkipFile(name, relPath string) bool {
	if excludeFiles[name] {
		return true
	}
	if strings.HasPrefix(name, ".") && name != ".gitignore" {
		return true
	}
	lower := strings.ToLower(name)
	for ext := range excludeExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return p.matchGlobs(relPath)
}

func (p *ExcludePolicy) matchGlobs(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, g := range p.globs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

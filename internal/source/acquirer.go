package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
)

// Acquirer normalises a source descriptor into a local tree of readable
// files. It owns the acquired root for the lifetime of the session.
type Acquirer struct {
	Workdir       string
	Policy        *ExcludePolicy
	MaxFileSizeMB int
}

// Result describes an acquired source tree.
type Result struct {
	Root    string
	Handler string
	Files   []FileRecord
}

// Acquire resolves the descriptor, materialises the tree, and collects the
// readable files below it. A descriptor no handler recognises, or a fetch
// that fails, is reported with the chosen handler's name.
func (a *Acquirer) Acquire(ctx context.Context, descriptor string) (*Result, error) {
	handler, err := ResolveHandler(descriptor)
	if err != nil {
		return nil, err
	}

	root, err := handler.Fetch(ctx, descriptor, a.Workdir)
	if err != nil {
		return nil, fmt.Errorf("%s handler: %w", handler.Name(), err)
	}

	files, err := a.collect(root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	log.Info().Str("handler", handler.Name()).Str("root", root).Int("files", len(files)).Msg("acquired source")
	return &Result{Root: root, Handler: handler.Name(), Files: files}, nil
}

// collect walks the root applying the exclude policy and size cap, reading
// each file with lossy decoding so undecodable bytes never abort ingestion.
func (a *Acquirer) collect(root string) ([]FileRecord, error) {
	maxSize := int64(a.MaxFileSizeMB) << 20
	policy := a.Policy
	if policy == nil {
		policy = NewExcludePolicy(nil)
	}

	var files []FileRecord
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			rel, err := filepath.Rel(root, path)
			if err != nil || rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if de.IsDir() {
				if policy.SkipDir(de.Name(), rel) {
					return filepath.SkipDir
				}
				return nil
			}
			if de.IsSymlink() || policy.SkipFile(de.Name(), rel) {
				return nil
			}

			info, err := os.Stat(path)
			if err != nil || info.Size() == 0 || info.Size() > maxSize {
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", rel).Msg("skipping unreadable file")
				return nil
			}
			files = append(files, FileRecord{
				AbsPath:  path,
				RelPath:  rel,
				Content:  strings.ToValidUTF8(string(data), "�"),
				Language: DetectLanguage(path),
				Size:     info.Size(),
			})
			return nil
		},
		ErrorCallback: func(_ string, _ error) godirwalk.ErrorAction {
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ErrUnsupportedSource is returned when no handler recognises a descriptor.
var ErrUnsupportedSource = fmt.Errorf("unsupported source descriptor")

// Handler turns one kind of source descriptor into a local tree of files.
// Detect inspects the descriptor only; Fetch materialises it under workdir
// and returns the root to walk.
type Handler interface {
	Name() string
	Detect(descriptor string) bool
	Fetch(ctx context.Context, descriptor, workdir string) (root string, err error)
}

// ResolveHandler picks the first handler whose Detect accepts the
// descriptor. Resolution order: zip archive, remote repository, local
// directory, web URL, single file.
func ResolveHandler(descriptor string) (Handler, error) {
	handlers := []Handler{
		&zipHandler{},
		&remoteHandler{},
		&dirHandler{},
		&webHandler{},
		&fileHandler{},
	}
	for _, h := range handlers {
		if h.Detect(descriptor) {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, descriptor)
}

// cleanDescriptor strips whitespace and trailing separators that commonly
// leak in from shell quoting or pasted URLs.
func cleanDescriptor(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, `\`)
	s = strings.TrimRight(s, "/")
	return s
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// looksLikeRepoID reports whether s has the owner/name shape and does not
// exist as a local path.
func looksLikeRepoID(s string) bool {
	if strings.Count(s, "/") != 1 || strings.ContainsAny(s, " \t\n") {
		return false
	}
	if _, err := os.Stat(s); err == nil {
		return false
	}
	parts := strings.SplitN(s, "/", 2)
	return parts[0] != "" && parts[1] != ""
}

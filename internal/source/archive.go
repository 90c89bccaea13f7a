package source

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// zipHandler extracts a local .zip archive into the workdir.
type zipHandler struct{}

func (z *zipHandler) Name() string { return "archive" }

func (z *zipHandler) Detect(descriptor string) bool {
	d := cleanDescriptor(descriptor)
	if !strings.HasSuffix(strings.ToLower(d), ".zip") {
		return false
	}
	fi, err := os.Stat(d)
	return err == nil && !fi.IsDir()
}

func (z *zipHandler) Fetch(ctx context.Context, descriptor, workdir string) (string, error) {
	d := cleanDescriptor(descriptor)
	base := strings.TrimSuffix(filepath.Base(d), filepath.Ext(d))
	root := filepath.Join(workdir, "extracted", base)
	if err := extractZip(d, root); err != nil {
		return "", fmt.Errorf("extract %s: %w", d, err)
	}
	log.Info().Str("archive", d).Str("root", root).Msg("extracted archive")
	return root, nil
}

func extractZip(zipPath, dest string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		// Reject entries escaping the destination (zip slip).
		if rel, err := filepath.Rel(dest, target); err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := copyZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

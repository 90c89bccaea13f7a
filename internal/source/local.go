package source

import (
	"context"
	"os"
	"path/filepath"
)

// dirHandler uses an existing local directory in place.
type dirHandler struct{}

func (d *dirHandler) Name() string { return "directory" }

func (d *dirHandler) Detect(descriptor string) bool {
	fi, err := os.Stat(cleanDescriptor(descriptor))
	return err == nil && fi.IsDir()
}

func (d *dirHandler) Fetch(_ context.Context, descriptor, _ string) (string, error) {
	return filepath.Abs(cleanDescriptor(descriptor))
}

// fileHandler copies a single local file into the workdir so the sandbox
// root contains only that file, not its siblings.
type fileHandler struct{}

func (f *fileHandler) Name() string { return "file" }

func (f *fileHandler) Detect(descriptor string) bool {
	fi, err := os.Stat(cleanDescriptor(descriptor))
	return err == nil && !fi.IsDir()
}

func (f *fileHandler) Fetch(_ context.Context, descriptor, workdir string) (string, error) {
	src := cleanDescriptor(descriptor)
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	root := filepath.Join(workdir, "single")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(root, filepath.Base(src)), data, 0o644); err != nil {
		return "", err
	}
	return root, nil
}

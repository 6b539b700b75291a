package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilesystemBackend stores objects as files under a root directory. Storage
// paths map directly to paths relative to the root.
type FilesystemBackend struct {
	root string
}

// NewFilesystemBackend creates the root directory if needed.
func NewFilesystemBackend(root string) (*FilesystemBackend, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &FilesystemBackend{root: root}, nil
}

func (b *FilesystemBackend) Create(key string) (io.WriteCloser, error) {
	full := filepath.Join(b.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, err
	}
	return os.Create(full)
}

func (b *FilesystemBackend) Open(key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(b.root, filepath.FromSlash(key)))
}

func (b *FilesystemBackend) Size(key string) (int64, error) {
	info, err := os.Stat(filepath.Join(b.root, filepath.FromSlash(key)))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (b *FilesystemBackend) Remove(key string) error {
	return os.Remove(filepath.Join(b.root, filepath.FromSlash(key)))
}

var _ Backend = (*FilesystemBackend)(nil)

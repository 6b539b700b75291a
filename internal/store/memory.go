package store

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sync"
)

// MemoryBackend keeps objects in a map. Used by tests and the memory store
// type.
type MemoryBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string][]byte)}
}

func (b *MemoryBackend) Create(key string) (io.WriteCloser, error) {
	return &memoryWriter{backend: b, key: key}, nil
}

func (b *MemoryBackend) Open(key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *MemoryBackend) Size(key string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return 0, fmt.Errorf("object %s: %w", key, fs.ErrNotExist)
	}
	return int64(len(data)), nil
}

func (b *MemoryBackend) Remove(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return fmt.Errorf("object %s: %w", key, fs.ErrNotExist)
	}
	delete(b.objects, key)
	return nil
}

// Truncate shortens a stored object. Test hook for verification failures.
func (b *MemoryBackend) Truncate(key string, size int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return fmt.Errorf("object %s: %w", key, fs.ErrNotExist)
	}
	if int64(len(data)) > size {
		b.objects[key] = data[:size]
	}
	return nil
}

// Len returns the number of stored objects.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

// memoryWriter buffers writes and commits the object on Close.
type memoryWriter struct {
	backend *MemoryBackend
	key     string
	buf     bytes.Buffer
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	w.backend.objects[w.key] = append([]byte(nil), w.buf.Bytes()...)
	return nil
}

var _ Backend = (*MemoryBackend)(nil)

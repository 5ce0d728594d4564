package pipeline

import (
	"fmt"
	"os"
	"sync"
)

// FileSystem is the disk as seen by the pipeline.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	IsFile(path string) bool
}

type OSFileSystem struct{}

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFileSystem) IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// MapFS is an in-memory FileSystem keyed by path.
type MapFS struct {
	mu    sync.RWMutex
	files map[string]string
}

func NewMapFS(files map[string]string) *MapFS {
	m := &MapFS{files: make(map[string]string, len(files))}
	for path, text := range files {
		m.files[path] = text
	}
	return m
}

func (m *MapFS) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
	}
	return []byte(text), nil
}

func (m *MapFS) IsFile(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok
}

func (m *MapFS) Write(path, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = text
}

func (m *MapFS) Delete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

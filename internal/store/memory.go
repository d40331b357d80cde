package store

import (
	"context"
	"sync"
)

// Memory is an in-process Blobstore backing tests for align, cube,
// pyramid and httpapi without a live GCS bucket. It is exported (not a
// _test.go file) because more than one package's tests construct one.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory returns an empty in-memory Blobstore.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, name string) ([]byte, error) {
	return m.GetRange(ctx, name, 0, -1)
}

func (m *Memory) GetRange(ctx context.Context, name string, start, end int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	if end < 0 {
		end = int64(len(data))
	}
	if start < 0 || end > int64(len(data)) || start > end {
		return nil, &NotFoundError{Name: name}
	}
	out := make([]byte, end-start)
	copy(out, data[start:end])
	return out, nil
}

func (m *Memory) Put(ctx context.Context, name string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[name] = cp
	return nil
}

// Objects returns the names currently stored, for test assertions.
func (m *Memory) Objects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.objects))
	for n := range m.objects {
		names = append(names, n)
	}
	return names
}

package storage

import (
	"bytes"
	"context"
	"io"
	"slices"
	"sync"
)

// Object is a file held by a MemoryStore.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryStore keeps objects in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

// Location returns a mem:// URI for key.
func (m *MemoryStore) Location(key string) string {
	return "mem://" + key
}

// Put stores a copy of r under key.
func (m *MemoryStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.objects[k] = Object{ContentType: contentType, Data: buf.Bytes()}
	m.mu.Unlock()
	return m.Location(k), nil
}

// Get returns the object stored under key.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	return o, ok
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

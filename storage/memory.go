package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// MemoryObject is an object held by a MemoryStore.
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// MemoryStore keeps objects in memory. It backs tests and the "memory"
// backend used for local previews of the dashboard.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string]MemoryObject
}

// NewMemoryStore creates an empty store publishing under baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: make(map[string]MemoryObject)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = MemoryObject{Data: data, ContentType: contentType}
	m.mu.Unlock()
	return publicURL(m.baseURL, key), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) KeyFromURL(rawURL string) (string, bool) {
	return keyFromURL(m.baseURL, rawURL)
}

// Get returns the object stored under key.
func (m *MemoryStore) Get(key string) (MemoryObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o, ok
}

// Keys lists stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

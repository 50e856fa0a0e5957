package tokenstore

import (
	"context"
	"sync"
)

// MemoryBackend — бэкенд в памяти процесса. Данные теряются при рестарте.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemoryBackend создаёт пустой бэкенд в памяти.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string]string)}
}

func (b *MemoryBackend) Get(_ context.Context, namespace, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	val, ok := b.data[namespace][key]
	return val, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, namespace, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, ok := b.data[namespace]
	if !ok {
		ns = make(map[string]string)
		b.data[namespace] = ns
	}
	ns[key] = value
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, namespace string, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, ok := b.data[namespace]
	if !ok {
		return nil
	}
	for _, k := range keys {
		delete(ns, k)
	}
	if len(ns) == 0 {
		delete(b.data, namespace)
	}
	return nil
}

// Namespaces возвращает число непустых пространств имён.
func (b *MemoryBackend) Namespaces() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

package store

import (
	"context"
	"errors"
	"sync"
)

// MapBackend is an in-memory Backend for tests. Set Fail to make every
// operation return an error, simulating an unreachable durable layer.
type MapBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
	Fail bool
}

// ErrUnavailable is returned by a MapBackend with Fail set.
var ErrUnavailable = errors.New("backend unavailable")

// NewMapBackend creates an empty in-memory backend.
func NewMapBackend() *MapBackend {
	return &MapBackend{data: make(map[string][]byte)}
}

func (b *MapBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if b.Fail {
		return nil, false, ErrUnavailable
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

func (b *MapBackend) Save(ctx context.Context, key string, data []byte) error {
	if b.Fail {
		return ErrUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	b.data[key] = cp
	return nil
}

func (b *MapBackend) Delete(ctx context.Context, key string) error {
	if b.Fail {
		return ErrUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

// Len reports how many keys are stored.
func (b *MapBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

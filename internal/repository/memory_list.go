package repository

import (
	"context"
	"sync"
)

// MemoryList keeps lists in process memory. Used when no external store is
// configured and in tests.
type MemoryList struct {
	mu    sync.RWMutex
	lists map[string][][]byte
}

func NewMemoryList() *MemoryList {
	return &MemoryList{lists: make(map[string][][]byte)}
}

func (m *MemoryList) Push(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]byte, len(value))
	copy(cp, value)

	m.mu.Lock()
	m.lists[key] = append(m.lists[key], cp)
	m.mu.Unlock()
	return nil
}

func (m *MemoryList) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.lists[key]
	lo, hi, ok := resolveRange(start, stop, int64(len(list)))
	if !ok {
		return [][]byte{}, nil
	}
	out := make([][]byte, 0, hi-lo)
	out = append(out, list[lo:hi]...)
	return out, nil
}

func (m *MemoryList) Len(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.lists[key])), nil
}

func (m *MemoryList) Close() error { return nil }

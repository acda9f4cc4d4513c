package repository

import (
	"context"
)

// ListStore is an ordered-list key-value service. Range follows LRANGE
// semantics: inclusive bounds, negative indexes count from the tail.
type ListStore interface {
	Push(ctx context.Context, key string, value []byte) error
	Range(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	Len(ctx context.Context, key string) (int64, error)
	Close() error
}

// resolveRange turns LRANGE bounds into a half-open [lo, hi) window over a
// list of length n. ok is false when the window is empty.
func resolveRange(start, stop, n int64) (lo, hi int64, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop + 1, true
}

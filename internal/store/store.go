// Package store provides the key-value and queue primitives used for session
// snapshots, results, login sessions and background hand-off.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by KV.Get when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// KV is a string key-value store with optional expiry.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Queue is a FIFO list of opaque payloads.
type Queue interface {
	Push(ctx context.Context, queue string, payloads ...[]byte) error
	// Pop blocks up to timeout for the next payload. It returns (nil, nil) on timeout.
	Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
}

// Backlogger is implemented by queues that can report their length.
type Backlogger interface {
	Backlog(ctx context.Context, queue string) (int64, error)
}

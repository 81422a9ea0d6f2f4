package store

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryKV is an in-process KV for development and tests.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]memEntry
	now  func() time.Time
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryKV) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.data, key)
		s.mu.Unlock()
		return "", ErrNotFound
	}
	return e.value, nil
}

func (s *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryKV) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.data, k)
	}
	s.mu.Unlock()
	return nil
}

// MemoryQueue is an in-process Queue for development and tests.
type MemoryQueue struct {
	mu     sync.Mutex
	lists  map[string][][]byte
	notify chan struct{}
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{lists: make(map[string][][]byte), notify: make(chan struct{})}
}

func (q *MemoryQueue) Push(_ context.Context, queue string, payloads ...[]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	q.mu.Lock()
	for _, p := range payloads {
		q.lists[queue] = append(q.lists[queue], append([]byte(nil), p...))
	}
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if list := q.lists[queue]; len(list) > 0 {
			head := list[0]
			q.lists[queue] = list[1:]
			q.mu.Unlock()
			return head, nil
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-wait:
		case <-deadline.C:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of payloads waiting in queue.
func (q *MemoryQueue) Len(queue string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lists[queue])
}

func (q *MemoryQueue) Backlog(_ context.Context, queue string) (int64, error) {
	return int64(q.Len(queue)), nil
}

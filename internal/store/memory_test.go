package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV_SetGetDel(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, kv.Del(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryKV_Expiry(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	now = now.Add(2 * time.Minute)

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	require.NoError(t, q.Push(ctx, "jobs", []byte("1"), []byte("2")))
	assert.Equal(t, 2, q.Len("jobs"))

	first, err := q.Pop(ctx, "jobs", time.Second)
	require.NoError(t, err)
	second, err := q.Pop(ctx, "jobs", time.Second)
	require.NoError(t, err)

	assert.Equal(t, "1", string(first))
	assert.Equal(t, "2", string(second))
}

func TestMemoryQueue_PopTimeout(t *testing.T) {
	q := NewMemoryQueue()

	got, err := q.Pop(context.Background(), "jobs", 10*time.Millisecond)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryQueue_PopWakesOnPush(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	done := make(chan []byte, 1)
	go func() {
		p, _ := q.Pop(ctx, "jobs", 2*time.Second)
		done <- p
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Push(ctx, "jobs", []byte("x")))

	select {
	case p := <-done:
		assert.Equal(t, "x", string(p))
	case <-time.After(time.Second):
		t.Fatal("pop did not wake up")
	}
}

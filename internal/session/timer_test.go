package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTick_NeverNegativeAndExpiresOnce(t *testing.T) {
	s := newTestSession(3 * time.Second)

	expired := 0
	for i := 0; i < 10; i++ {
		res := s.Tick()
		assert.GreaterOrEqual(t, res.Remaining, 0)
		if res.Expired {
			expired++
		}
	}

	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, s.Remaining())
	assert.True(t, s.Expired())
}

func TestTick_WarningsAtThresholds(t *testing.T) {
	s := newTestSession(302 * time.Second)

	warnings := map[int]int{}
	for i := 0; i < 302; i++ {
		res := s.Tick()
		if res.Warning > 0 {
			warnings[res.Warning]++
			assert.Equal(t, res.Warning, res.Remaining)
		}
	}

	assert.Equal(t, map[int]int{300: 1, 60: 1}, warnings)
}

func TestTick_NoWarningWhenStartingBelowThreshold(t *testing.T) {
	s := newTestSession(100 * time.Second)

	var got []int
	for i := 0; i < 100; i++ {
		if w := s.Tick().Warning; w > 0 {
			got = append(got, w)
		}
	}
	assert.Equal(t, []int{60}, got)
}

func TestTick_StopsAfterSubmit(t *testing.T) {
	s := newTestSession(10 * time.Second)
	s.Tick()
	s.MarkSubmitted()

	res := s.Tick()
	assert.Equal(t, 9, res.Remaining)
	assert.False(t, res.Expired)
}

func TestTimer_RunStopsOnCancel(t *testing.T) {
	s := newTestSession(time.Hour)

	var mu sync.Mutex
	ticks := 0
	timer := NewTimer(s, 5*time.Millisecond, func(context.Context, TickResult) {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		timer.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not stop")
	}
}

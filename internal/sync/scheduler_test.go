package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource counts how many passes pulled addresses from it.
type countingSource struct {
	calls atomic.Int32
}

func (s *countingSource) Addresses(ctx context.Context) ([]string, error) {
	s.calls.Add(1)
	return nil, nil
}

func TestScheduler_RunsImmediatelyAndOnInterval(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	src := &countingSource{}
	sched := NewScheduler(h.orch, src, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()

	err := sched.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// One immediate pass plus at least two interval ticks.
	assert.GreaterOrEqual(t, src.calls.Load(), int32(3))
}

func TestScheduler_Trigger(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	src := &countingSource{}
	sched := NewScheduler(h.orch, src, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	// Wait out the immediate pass, then trigger one more.
	require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, sched.Trigger())

	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_TriggerCoalesces(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	sched := NewScheduler(h.orch, &countingSource{}, time.Hour)

	// Without a running loop draining the channel, only one trigger queues.
	assert.True(t, sched.Trigger())
	assert.False(t, sched.Trigger())
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	h := newHarness(t, Options{}, nil)
	sched := NewScheduler(h.orch, &countingSource{}, 0)
	assert.Equal(t, 30*time.Second, sched.interval)
}

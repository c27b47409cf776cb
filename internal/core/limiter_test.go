package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchLimiter_AcquireRelease(t *testing.T) {
	limiter := NewBatchLimiter(2, time.Second)

	slot, err := limiter.Acquire(context.Background(), "day1.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, limiter.ActiveCount())
	assert.Equal(t, 1, limiter.Available())

	slot.Release()
	assert.Equal(t, 0, limiter.ActiveCount())
	assert.Equal(t, 2, limiter.Available())
}

func TestBatchLimiter_ReleaseTwice(t *testing.T) {
	limiter := NewBatchLimiter(2, time.Second)

	slot, ok := limiter.TryAcquire("a")
	require.True(t, ok)
	slot.Release()
	slot.Release()

	assert.Equal(t, 2, limiter.Available())
	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestBatchLimiter_RejectsWhenFull(t *testing.T) {
	limiter := NewBatchLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	slot, err := limiter.Acquire(ctx, "first")
	require.NoError(t, err)
	defer slot.Release()

	start := time.Now()
	_, err = limiter.Acquire(ctx, "second")
	assert.ErrorIs(t, err, ErrTooManyBatches)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestBatchLimiter_ConcurrentAccess(t *testing.T) {
	const maxConcurrent = 3
	limiter := NewBatchLimiter(maxConcurrent, 5*time.Second)

	var (
		wg      sync.WaitGroup
		current atomic.Int32
		peak    atomic.Int32
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slot, err := limiter.Acquire(context.Background(), fmt.Sprintf("batch-%d", i))
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer slot.Release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(maxConcurrent))
	assert.Equal(t, 0, limiter.ActiveCount())
	assert.Nil(t, limiter.Running())
}

func TestBatchLimiter_TryAcquire(t *testing.T) {
	limiter := NewBatchLimiter(1, time.Second)

	slot, ok := limiter.TryAcquire("a")
	require.True(t, ok)
	_, ok = limiter.TryAcquire("b")
	assert.False(t, ok)

	slot.Release()
	slot, ok = limiter.TryAcquire("b")
	require.True(t, ok)
	slot.Release()
}

func TestBatchLimiter_ContextCancellation(t *testing.T) {
	limiter := NewBatchLimiter(1, 5*time.Second)
	slot, ok := limiter.TryAcquire("busy")
	require.True(t, ok)
	defer slot.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := limiter.Acquire(ctx, "waiting")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatchLimiter_WaitForDrain(t *testing.T) {
	limiter := NewBatchLimiter(2, time.Second)
	slot, ok := limiter.TryAcquire("a")
	require.True(t, ok)

	go func() {
		time.Sleep(50 * time.Millisecond)
		slot.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, limiter.WaitForDrain(ctx))
	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestBatchLimiter_WaitForDrainIdle(t *testing.T) {
	limiter := NewBatchLimiter(1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// An idle limiter is drained even with a dead context.
	assert.NoError(t, limiter.WaitForDrain(ctx))
}

func TestBatchLimiter_WaitForDrainTimeout(t *testing.T) {
	limiter := NewBatchLimiter(1, time.Second)
	slot, ok := limiter.TryAcquire("stuck")
	require.True(t, ok)
	defer slot.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.WaitForDrain(ctx), context.DeadlineExceeded)
}

func TestBatchLimiter_Status(t *testing.T) {
	limiter := NewBatchLimiter(3, time.Second)
	started := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	limiter.now = func() time.Time { return started }

	first, ok := limiter.TryAcquire("day1.csv")
	require.True(t, ok)
	second, ok := limiter.TryAcquire("day2.csv")
	require.True(t, ok)
	defer second.Release()

	assert.Equal(t, BatchLimiterStatus{
		Active:        2,
		Available:     1,
		MaxConcurrent: 3,
		Running: []RunningBatch{
			{Slot: 0, Label: "day1.csv", Started: started},
			{Slot: 1, Label: "day2.csv", Started: started},
		},
	}, limiter.Status())

	first.Release()
	status := limiter.Status()
	assert.Equal(t, 1, status.Active)
	require.Len(t, status.Running, 1)
	assert.Equal(t, "day2.csv", status.Running[0].Label)
}

func TestBatchLimiter_SlotReused(t *testing.T) {
	limiter := NewBatchLimiter(2, time.Second)

	a, _ := limiter.TryAcquire("a")
	b, _ := limiter.TryAcquire("b")
	a.Release()

	c, ok := limiter.TryAcquire("c")
	require.True(t, ok)
	defer b.Release()
	defer c.Release()

	running := limiter.Running()
	require.Len(t, running, 2)
	assert.Equal(t, RunningBatch{Slot: 0, Label: "c", Started: running[0].Started}, running[0])
	assert.Equal(t, "b", running[1].Label)
}

func TestBatchLimiter_DefaultValues(t *testing.T) {
	limiter := NewBatchLimiter(0, 0)

	assert.Equal(t, DefaultMaxConcurrentBatches, limiter.MaxConcurrent())
	assert.Equal(t, DefaultMaxWaitTime, limiter.maxWait)
	assert.Equal(t, BatchLimiterStatus{Available: DefaultMaxConcurrentBatches, MaxConcurrent: DefaultMaxConcurrentBatches}, limiter.Status())
}

func TestBatchLimiter_UnblocksWaiter(t *testing.T) {
	limiter := NewBatchLimiter(1, 2*time.Second)
	held, ok := limiter.TryAcquire("held")
	require.True(t, ok)

	done := make(chan *BatchSlot, 1)
	go func() {
		slot, err := limiter.Acquire(context.Background(), "waiter")
		if err != nil {
			t.Errorf("Acquire: %v", err)
		}
		done <- slot
	}()

	time.Sleep(20 * time.Millisecond)
	held.Release()

	select {
	case slot := <-done:
		require.NotNil(t, slot)
		assert.Equal(t, "waiter", limiter.Running()[0].Label)
		slot.Release()
	case <-time.After(time.Second):
		t.Fatal("waiter was not unblocked")
	}
}

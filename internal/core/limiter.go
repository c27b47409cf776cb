package core

// limiter.go bounds how many batches are processed at once.
//
// Each batch holds its whole file in memory while duplicates are resolved, so
// the intake server admits at most a fixed number of batches. A batch takes a
// numbered slot under its source label and gives it back through the
// returned BatchSlot. When every slot is taken a request waits up to maxWait
// before failing with ErrTooManyBatches.

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrTooManyBatches is returned when every batch slot stays occupied for the
// whole wait period.
var ErrTooManyBatches = errors.New("too many batches in progress")

// DefaultMaxConcurrentBatches is the default limit for parallel batches.
const DefaultMaxConcurrentBatches = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// RunningBatch describes the batch occupying one slot.
type RunningBatch struct {
	Slot    int       `json:"slot"`
	Label   string    `json:"label"`
	Started time.Time `json:"started"`
}

// BatchLimiter hands out a fixed set of numbered batch slots.
type BatchLimiter struct {
	free    chan int
	maxWait time.Duration
	now     func() time.Time

	mu      sync.Mutex
	running map[int]RunningBatch
	idle    chan struct{} // closed while running is empty
}

// BatchSlot is a held slot. Release is safe to call more than once.
type BatchSlot struct {
	limiter *BatchLimiter
	id      int
	once    sync.Once
}

// Release returns the slot to the limiter.
func (s *BatchSlot) Release() {
	s.once.Do(func() { s.limiter.release(s.id) })
}

// NewBatchLimiter creates a limiter admitting at most maxConcurrent batches.
func NewBatchLimiter(maxConcurrent int, maxWait time.Duration) *BatchLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentBatches
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	free := make(chan int, maxConcurrent)
	for i := 0; i < maxConcurrent; i++ {
		free <- i
	}
	idle := make(chan struct{})
	close(idle)

	return &BatchLimiter{
		free:    free,
		maxWait: maxWait,
		now:     time.Now,
		running: make(map[int]RunningBatch, maxConcurrent),
		idle:    idle,
	}
}

// Acquire waits for a free slot and records label against it. The caller
// must Release the returned slot.
func (l *BatchLimiter) Acquire(ctx context.Context, label string) (*BatchSlot, error) {
	select {
	case id := <-l.free:
		return l.occupy(id, label), nil
	default:
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case id := <-l.free:
		return l.occupy(id, label), nil
	case <-timer.C:
		return nil, ErrTooManyBatches
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire takes a slot for label if one is free, without waiting.
func (l *BatchLimiter) TryAcquire(label string) (*BatchSlot, bool) {
	select {
	case id := <-l.free:
		return l.occupy(id, label), true
	default:
		return nil, false
	}
}

func (l *BatchLimiter) occupy(id int, label string) *BatchSlot {
	l.mu.Lock()
	if len(l.running) == 0 {
		l.idle = make(chan struct{})
	}
	l.running[id] = RunningBatch{Slot: id, Label: label, Started: l.now()}
	l.mu.Unlock()

	return &BatchSlot{limiter: l, id: id}
}

func (l *BatchLimiter) release(id int) {
	l.mu.Lock()
	delete(l.running, id)
	if len(l.running) == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	l.free <- id
}

// ActiveCount returns the number of batches holding a slot.
func (l *BatchLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.running)
}

// MaxConcurrent returns the slot count.
func (l *BatchLimiter) MaxConcurrent() int {
	return cap(l.free)
}

// Available returns the number of free slots.
func (l *BatchLimiter) Available() int {
	return len(l.free)
}

// Running lists the batches holding a slot, ordered by slot number.
func (l *BatchLimiter) Running() []RunningBatch {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.running) == 0 {
		return nil
	}
	out := make([]RunningBatch, 0, len(l.running))
	for _, rb := range l.running {
		out = append(out, rb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// WaitForDrain blocks until no batch holds a slot or ctx is done.
func (l *BatchLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BatchLimiterStatus is a snapshot of limiter occupancy.
type BatchLimiterStatus struct {
	Active        int            `json:"active"`
	Available     int            `json:"available"`
	MaxConcurrent int            `json:"max_concurrent"`
	Running       []RunningBatch `json:"running,omitempty"`
}

// Status returns the current occupancy, reported by the health endpoint.
func (l *BatchLimiter) Status() BatchLimiterStatus {
	running := l.Running()
	return BatchLimiterStatus{
		Active:        len(running),
		Available:     cap(l.free) - len(running),
		MaxConcurrent: cap(l.free),
		Running:       running,
	}
}

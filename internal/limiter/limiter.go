package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Timer provides time for date resolution and request spacing.
type Timer interface {
	Now() time.Time
	Sleep(ctx context.Context, duration time.Duration) error
}

// Limiter is the global admission limiter shared by every fetch in a run.
// At most capacity requests hold a permit at once; when interval is positive,
// consecutive admissions are additionally spaced by at least interval.
type Limiter struct {
	permits  *semaphore.Weighted
	capacity int

	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	clock    Timer
}

// New creates a limiter with the given number of permits.
// A capacity below one is treated as one.
func New(capacity int, interval time.Duration, clock Timer) *Limiter {
	if capacity < 1 {
		capacity = 1
	}

	if clock == nil {
		clock = Clock{}
	}

	if interval < 0 {
		interval = 0
	}

	return &Limiter{
		permits:  semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
		interval: interval,
		clock:    clock,
	}
}

// Capacity returns the number of permits.
func (l *Limiter) Capacity() int {
	if l == nil {
		return 0
	}

	return l.capacity
}

// Acquire blocks until a permit is available and the spacing interval has
// elapsed, or until ctx is done. Every successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}

	if err := l.permits.Acquire(ctx, 1); err != nil {
		return err
	}

	if err := l.pace(ctx); err != nil {
		l.permits.Release(1)

		return err
	}

	return nil
}

// Release returns a permit.
func (l *Limiter) Release() {
	if l == nil {
		return
	}

	l.permits.Release(1)
}

func (l *Limiter) pace(ctx context.Context) error {
	if l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := l.clock.Now()
	if l.last.IsZero() {
		l.last = now
		l.mu.Unlock()

		return nil
	}

	next := l.last.Add(l.interval)
	if now.Before(next) {
		wait := next.Sub(now)
		l.last = next
		l.mu.Unlock()

		return l.clock.Sleep(ctx, wait)
	}

	l.last = now
	l.mu.Unlock()

	return nil
}

package limiter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	mu       sync.Mutex
	now      time.Time
	sleeps   []time.Duration
	sleepErr error
}

func (t *fakeTimer) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.now
}

func (t *fakeTimer) set(now time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

func (t *fakeTimer) Sleep(ctx context.Context, duration time.Duration) error {
	t.mu.Lock()
	t.sleeps = append(t.sleeps, duration)
	t.mu.Unlock()

	if t.sleepErr != nil {
		return t.sleepErr
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func baseTime() time.Time {
	return time.Date(2026, time.February, 12, 12, 0, 0, 0, time.UTC)
}

func TestNewNormalizesCapacity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{name: "zero", capacity: 0, want: 1},
		{name: "negative", capacity: -3, want: 1},
		{name: "positive", capacity: 8, want: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := New(tt.capacity, 0, nil)
			require.Equal(t, tt.want, l.Capacity())
		})
	}
}

func TestAcquireNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	l := New(3, 0, nil)

	var (
		inFlight int32
		peak     int32
		wg       sync.WaitGroup
	)

	for range 30 {
		wg.Go(func() {
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)

				return
			}
			defer l.Release()

			current := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if current <= old || atomic.CompareAndSwapInt32(&peak, old, current) {
					break
				}
			}

			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		})
	}

	wg.Wait()

	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestAcquireHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	l := New(1, 0, nil)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)

	l.Release()
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
}

func TestAcquireSpacesAdmissions(t *testing.T) {
	t.Parallel()

	clock := &fakeTimer{now: baseTime()}
	l := New(4, 100*time.Millisecond, clock)

	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
	require.Empty(t, clock.sleeps)

	clock.set(baseTime().Add(40 * time.Millisecond))
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
	require.Equal(t, []time.Duration{60 * time.Millisecond}, clock.sleeps)

	clock.set(baseTime().Add(time.Second))
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
	require.Len(t, clock.sleeps, 1)
}

func TestAcquireReleasesPermitWhenPacingFails(t *testing.T) {
	t.Parallel()

	errSleep := errors.New("sleep failed")
	clock := &fakeTimer{now: baseTime(), sleepErr: errSleep}
	l := New(1, time.Second, clock)

	require.NoError(t, l.Acquire(context.Background()))
	l.Release()

	err := l.Acquire(context.Background())
	require.ErrorIs(t, err, errSleep)

	clock.sleepErr = nil
	clock.set(baseTime().Add(time.Hour))
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
}

func TestNilLimiter(t *testing.T) {
	t.Parallel()

	var l *Limiter
	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
	require.Zero(t, l.Capacity())
}

func TestClockSleep(t *testing.T) {
	t.Parallel()

	clock := NewClock()

	require.NoError(t, clock.Sleep(context.Background(), 0))
	require.NoError(t, clock.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, clock.Sleep(ctx, time.Minute), context.Canceled)
}

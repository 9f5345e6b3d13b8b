package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubmitRunsTask(t *testing.T) {
	t.Parallel()

	q := New(2, time.Second, zap.NewNop())
	var ran atomic.Bool
	err := q.Submit(context.Background(), "noop", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran.Load())
	require.True(t, q.Quiet())
}

func TestSubmitPropagatesTaskError(t *testing.T) {
	t.Parallel()

	q := New(1, time.Second, zap.NewNop())
	boom := errors.New("boom")
	err := q.Submit(context.Background(), "fails", func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}

func TestConcurrencyCeilingHolds(t *testing.T) {
	t.Parallel()

	const ceiling = 2
	const tasks = 10

	q := New(ceiling, 5*time.Second, zap.NewNop())

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Submit(context.Background(), "counted", func(ctx context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, peak.Load(), int64(ceiling))
	require.True(t, q.Quiet())
}

func TestSecondTaskStartsAfterFirstCompletes(t *testing.T) {
	t.Parallel()

	q := New(1, 5*time.Second, zap.NewNop())

	var firstDone, secondStart time.Time
	started := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = q.Submit(context.Background(), "first", func(ctx context.Context) error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			firstDone = time.Now()
			return nil
		})
	}()
	<-started
	go func() {
		defer wg.Done()
		_ = q.Submit(context.Background(), "second", func(ctx context.Context) error {
			secondStart = time.Now()
			return nil
		})
	}()
	wg.Wait()

	require.False(t, secondStart.Before(firstDone),
		"second task started %v before first completed %v", secondStart, firstDone)
}

func TestSubmitTimesOutWhileWaiting(t *testing.T) {
	t.Parallel()

	q := New(1, time.Second, zap.NewNop())

	blocked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = q.Submit(context.Background(), "hog", func(ctx context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked

	err := q.SubmitWithTimeout(context.Background(), "starved", 30*time.Millisecond, func(ctx context.Context) error {
		t.Error("starved task must not run")
		return nil
	})
	require.ErrorIs(t, err, ErrTimeout)
	close(release)
}

func TestSubmitTimesOutWhileRunning(t *testing.T) {
	t.Parallel()

	q := New(1, time.Second, zap.NewNop())

	cleaned := make(chan struct{})
	err := q.SubmitWithTimeout(context.Background(), "slow", 30*time.Millisecond, func(ctx context.Context) error {
		defer close(cleaned)
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, ErrTimeout)

	// The task still observes its deadline and runs its own teardown.
	select {
	case <-cleaned:
	case <-time.After(time.Second):
		t.Fatal("task teardown never ran")
	}
}

func TestSubmitCanceledWhileWaiting(t *testing.T) {
	t.Parallel()

	q := New(1, time.Second, zap.NewNop())

	blocked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = q.Submit(context.Background(), "hog", func(ctx context.Context) error {
			close(blocked)
			<-release
			return nil
		})
	}()
	<-blocked

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Submit(ctx, "canceled", func(ctx context.Context) error {
		t.Error("canceled task must not run")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestQuietReflectsInFlight(t *testing.T) {
	t.Parallel()

	q := New(1, time.Second, zap.NewNop())
	inside := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = q.Submit(context.Background(), "busy", func(ctx context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside
	require.False(t, q.Quiet())
	require.Equal(t, int64(1), q.InFlight())
	close(release)

	require.Eventually(t, q.Quiet, time.Second, 5*time.Millisecond)
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPool_RunBoundsConcurrency(t *testing.T) {
	pool := NewPool(2, nil)

	var running, peak int32
	units := make([]Unit, 8)
	for i := range units {
		units[i] = Unit{
			Name: fmt.Sprintf("mailbox-%d", i),
			Run: func(ctx context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			},
		}
	}

	report := pool.Run(context.Background(), "test", units)

	assert.Equal(t, 8, report.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.NoError(t, report.Err())
}

func TestPool_BoundIsSharedAcrossJobs(t *testing.T) {
	pool := NewPool(1, nil)

	var running, peak int32
	unit := func(ctx context.Context) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}

	var g errgroup.Group
	reports := make([]*Report, 3)
	for i := range reports {
		i := i
		g.Go(func() error {
			reports[i] = pool.Run(context.Background(), fmt.Sprintf("job-%d", i), []Unit{
				{Name: "a", Run: unit},
				{Name: "b", Run: unit},
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	for _, r := range reports {
		assert.Equal(t, 2, r.Succeeded)
	}
}

func TestPool_FailuresAreIsolated(t *testing.T) {
	pool := NewPool(4, nil)
	units := []Unit{
		{Name: "a", Run: func(context.Context) error { return nil }},
		{Name: "b", Run: func(context.Context) error { return errors.New("deadlock") }},
		{Name: "c", Run: func(context.Context) error { return nil }},
	}

	report := pool.Run(context.Background(), "test", units)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "deadlock", report.Results[1].Error)
	assert.ErrorContains(t, report.Err(), "b: deadlock")
}

func TestPool_CancellationStopsSchedulingButNotRunningUnits(t *testing.T) {
	pool := NewPool(1, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var sawCancelled atomic.Bool
	units := []Unit{
		{Name: "first", Run: func(unitCtx context.Context) error {
			cancel()
			time.Sleep(5 * time.Millisecond)
			sawCancelled.Store(unitCtx.Err() != nil)
			return nil
		}},
		{Name: "second", Run: func(context.Context) error { return nil }},
		{Name: "third", Run: func(context.Context) error { return nil }},
	}

	report := pool.Run(ctx, "test", units)

	assert.True(t, report.Results[0].Done)
	assert.False(t, sawCancelled.Load())
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Skipped)
	assert.ErrorIs(t, report.Results[2].Err, ErrSkipped)
	assert.NoError(t, report.Err())
}

func TestPool_RunAllTimesOut(t *testing.T) {
	pool := NewPool(2, nil)
	release := make(chan struct{})
	defer close(release)

	units := []Unit{
		{Name: "fast", Run: func(context.Context) error { return nil }},
		{Name: "slow", Run: func(context.Context) error {
			<-release
			return nil
		}},
	}

	report := pool.RunAll(context.Background(), "test", units, 50*time.Millisecond)

	require.True(t, report.TimedOut)
	assert.True(t, report.Results[0].Done)
	assert.False(t, report.Results[1].Done)
	assert.ErrorIs(t, report.Results[1].Err, context.DeadlineExceeded)
}

func TestPool_RunAllCompletesBeforeTimeout(t *testing.T) {
	pool := NewPool(2, nil)
	units := []Unit{
		{Name: "a", Run: func(context.Context) error { return nil }},
		{Name: "b", Run: func(context.Context) error { return nil }},
	}

	report := pool.RunAll(context.Background(), "test", units, time.Second)

	assert.False(t, report.TimedOut)
	assert.Equal(t, 2, report.Succeeded)
}

func TestNewPool_Defaults(t *testing.T) {
	assert.Equal(t, DefaultMaxConcurrency, NewPool(0, nil).MaxConcurrency())
	assert.Equal(t, 7, NewPool(7, nil).MaxConcurrency())
}

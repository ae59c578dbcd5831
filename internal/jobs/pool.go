// Package jobs runs long batch work on a bounded worker pool and on a cron schedule.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const DefaultMaxConcurrency = 4

// ErrSkipped is reported for units that never started because the job was cancelled
var ErrSkipped = errors.New("unit skipped: job cancelled")

// Unit is one independent piece of a batch job, typically one mailbox or one scope
type Unit struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result is the outcome of one unit
type Result struct {
	Name     string        `json:"name"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Done     bool          `json:"done"`
}

// Report summarises a job run
type Report struct {
	Job       string   `json:"job"`
	Results   []Result `json:"results"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	TimedOut  bool     `json:"timed_out,omitempty"`
}

// Err joins the errors of failed units
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil && !errors.Is(res.Err, ErrSkipped) {
			errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Pool bounds how many units of all jobs run at once. Every Run shares the
// same slots, so concurrent jobs queue behind each other's units.
type Pool struct {
	maxConcurrency int
	slots          *semaphore.Weighted
	logger         *slog.Logger
}

// NewPool creates a pool running at most maxConcurrency units in parallel
// across all jobs
func NewPool(maxConcurrency int, l *slog.Logger) *Pool {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Pool{
		maxConcurrency: maxConcurrency,
		slots:          semaphore.NewWeighted(int64(maxConcurrency)),
		logger:         logger.OrDefault(l),
	}
}

// MaxConcurrency returns the configured unit parallelism
func (p *Pool) MaxConcurrency() int {
	return p.maxConcurrency
}

// Run executes every unit and waits for all of them. Cancellation of ctx is
// checked before each unit starts; a unit already running is not interrupted
// and completes with a context detached from ctx.
func (p *Pool) Run(ctx context.Context, job string, units []Unit) *Report {
	tracker := newTracker(job, units)
	p.run(ctx, job, units, tracker)
	return tracker.report(false)
}

// RunAll is Run with a barrier timeout: it returns once every unit finished
// or when timeout elapses, whichever comes first. Units still running at the
// timeout keep going in the background and are reported as not done.
func (p *Pool) RunAll(ctx context.Context, job string, units []Unit, timeout time.Duration) *Report {
	if timeout <= 0 {
		return p.Run(ctx, job, units)
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tracker := newTracker(job, units)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.run(tctx, job, units, tracker)
	}()

	select {
	case <-done:
		return tracker.report(false)
	case <-tctx.Done():
		p.logger.Warn("job barrier timed out",
			slog.String("job", job),
			slog.Duration("timeout", timeout),
		)
		return tracker.report(true)
	}
}

func (p *Pool) run(ctx context.Context, job string, units []Unit, t *tracker) {
	start := time.Now()
	var g errgroup.Group
	g.SetLimit(p.maxConcurrency)

	for i := range units {
		i := i
		if ctx.Err() != nil {
			t.skip(i)
			continue
		}
		g.Go(func() error {
			if err := p.slots.Acquire(ctx, 1); err != nil {
				t.skip(i)
				return nil
			}
			defer p.slots.Release(1)
			if ctx.Err() != nil {
				t.skip(i)
				return nil
			}
			unitStart := time.Now()
			err := units[i].Run(context.WithoutCancel(ctx))
			t.finish(i, err, time.Since(unitStart))
			if err != nil {
				metrics.JobUnits.WithLabelValues(job, "error").Inc()
				p.logger.Warn("job unit failed",
					slog.String("job", job),
					slog.String("unit", units[i].Name),
					slog.String("error", err.Error()),
				)
			} else {
				metrics.JobUnits.WithLabelValues(job, "ok").Inc()
			}
			return nil
		})
	}

	_ = g.Wait()
	metrics.JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}

// tracker collects results written concurrently by unit goroutines
type tracker struct {
	mu      sync.Mutex
	job     string
	results []Result
}

func newTracker(job string, units []Unit) *tracker {
	results := make([]Result, len(units))
	for i, u := range units {
		results[i].Name = u.Name
	}
	return &tracker{job: job, results: results}
}

func (t *tracker) finish(i int, err error, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results[i].Err = err
	t.results[i].Duration = d
	t.results[i].Done = true
}

func (t *tracker) skip(i int) {
	metrics.JobUnits.WithLabelValues(t.job, "skipped").Inc()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results[i].Err = ErrSkipped
}

func (t *tracker) report(timedOut bool) *Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := &Report{Job: t.job, TimedOut: timedOut, Results: make([]Result, len(t.results))}
	for i, res := range t.results {
		switch {
		case errors.Is(res.Err, ErrSkipped):
			r.Skipped++
		case !res.Done:
			res.Err = context.DeadlineExceeded
			r.Failed++
		case res.Err != nil:
			r.Failed++
		default:
			r.Succeeded++
		}
		if res.Err != nil {
			res.Error = res.Err.Error()
		}
		r.Results[i] = res
	}
	return r
}

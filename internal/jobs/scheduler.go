package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/metrics"
)

// TaskFunc is a scheduled task
type TaskFunc func(ctx context.Context) error

// TaskStatus is the last known state of a scheduled task
type TaskStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run,omitempty"`
	NextRun   time.Time `json:"next_run"`
	LastError string    `json:"last_error,omitempty"`
}

type task struct {
	fn       TaskFunc
	entry    cron.EntryID
	schedule string
	running  bool
	lastRun  time.Time
	lastErr  error
}

// Scheduler runs named tasks on cron expressions. A task never overlaps itself.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler using five-field cron expressions
func NewScheduler(l *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		))),
		logger: logger.OrDefault(l),
		tasks:  make(map[string]*task),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add schedules fn under name, replacing any task with the same name
func (s *Scheduler) Add(name, schedule string, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[name]; ok {
		s.cron.Remove(existing.entry)
		delete(s.tasks, name)
	}

	entry, err := s.cron.AddFunc(schedule, func() { s.Trigger(name) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}

	s.tasks[name] = &task{fn: fn, entry: entry, schedule: schedule}
	s.logger.Info("scheduled task",
		slog.String("task", name),
		slog.String("schedule", schedule),
	)
	return nil
}

// Trigger runs a scheduled task immediately. It returns false when the task
// is unknown, already running, or the scheduler is stopped.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if !ok || s.stopped || t.running {
		s.mu.Unlock()
		return false
	}
	t.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runTask(name, t)
	return true
}

func (s *Scheduler) runTask(name string, t *task) {
	defer s.wg.Done()

	start := time.Now()
	err := s.safeRun(name, t.fn)
	metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	s.mu.Lock()
	t.running = false
	t.lastRun = start
	t.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled task failed",
			slog.String("task", name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("scheduled task completed",
		slog.String("task", name),
		slog.Duration("duration", time.Since(start)),
	)
}

func (s *Scheduler) safeRun(name string, fn TaskFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
	}()
	return fn(s.ctx)
}

// Start begins executing scheduled tasks
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.stopped = false
	n := len(s.tasks)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("tasks", n))
}

// Stop prevents new runs, cancels running tasks and waits for them up to ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronCtx.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status lists every task with its next run time
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for name, t := range s.tasks {
		st := TaskStatus{
			Name:     name,
			Schedule: t.schedule,
			Running:  t.running,
			LastRun:  t.lastRun,
			NextRun:  s.cron.Entry(t.entry).Next,
		}
		if t.lastErr != nil {
			st.LastError = t.lastErr.Error()
		}
		out = append(out, st)
	}
	return out
}

// Package scheduler runs the overlay's periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron    *cron.Cron
	mu      sync.Mutex
	jobs    map[string]cron.EntryID
	timeout time.Duration
}

// New creates a scheduler in loc (time.Local when nil). Each run of a job is
// bounded by timeout.
func New(loc *time.Location, timeout time.Duration) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		jobs:    make(map[string]cron.EntryID),
		timeout: timeout,
	}
}

// AddJob adds a job with a cron schedule, e.g. "0 3 * * *" or "@every 30s".
// A run is skipped while the previous run of the same job is still going.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.run(name, job)
	}))

	entryID, err := s.cron.AddJob(schedule, wrapped)
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = entryID
	s.mu.Unlock()
	slog.Info("[scheduler] added job", slog.String("name", name), slog.String("schedule", schedule))
	return nil
}

// AddEvery runs job at a fixed interval.
func (s *Scheduler) AddEvery(name string, every time.Duration, job Job) error {
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	return s.AddJob(name, "@every "+every.String(), job)
}

// AddDaily runs job once a day at timeStr ("03:00").
func (s *Scheduler) AddDaily(name, timeStr string, job Job) error {
	t, err := time.Parse("15:04", timeStr)
	if err != nil {
		return fmt.Errorf("invalid time format %s: %w", timeStr, err)
	}
	return s.AddJob(name, fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), job)
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		slog.Warn("[scheduler] job failed", slog.String("name", name), slog.Any("error", err))
		return
	}
	slog.Debug("[scheduler] job completed", slog.String("name", name), slog.Duration("took", time.Since(start)))
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		slog.Info("[scheduler] removed job", slog.String("name", name))
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	slog.Debug("[scheduler] starting")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	slog.Debug("[scheduler] stopping")
	return s.cron.Stop()
}

// Run starts the scheduler and stops it when ctx is done, waiting for
// running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	<-s.Stop().Done()
	return nil
}

// RunNow immediately executes a scheduled job by name.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	entryID, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}

	entry := s.cron.Entry(entryID)
	if !entry.Valid() {
		return fmt.Errorf("job %s is not scheduled", name)
	}
	slog.Info("[scheduler] running job now", slog.String("name", name))
	done := make(chan struct{})
	go func() {
		defer close(done)
		entry.WrappedJob.Run()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, entryID := range s.jobs {
		entry := s.cron.Entry(entryID)
		if !entry.Valid() {
			continue
		}
		infos = append(infos, JobInfo{Name: name, NextRun: entry.Next, LastRun: entry.Prev})
	}
	return infos
}

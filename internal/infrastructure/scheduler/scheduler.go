// Package scheduler runs the background jobs of the reward hub: the
// theme/viewport reconciliation poll and the daily sweep of expired offers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	ErrNilJob         = errors.New("job cannot be nil")
	ErrNilSchedule    = errors.New("schedule cannot be nil")
	ErrDuplicateJob   = errors.New("job already registered")
	ErrUnknownJob     = errors.New("unknown job")
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB & SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// Job is a unit of background work. Run receives a context that is
// cancelled when the scheduler stops.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// Schedule decides when a job fires next.
type Schedule interface {
	// Next returns the first fire time strictly after t.
	Next(t time.Time) time.Time
	String() string
}

// entry is the scheduler's bookkeeping for one registered job.
type entry struct {
	job      Job
	schedule Schedule
	enabled  bool

	lastRun  time.Time
	nextRun  time.Time
	runs     int64
	failures int64
	lastErr  error
}

// JobStatus is a read-only snapshot of one registered job.
type JobStatus struct {
	Name        string
	Description string
	Schedule    string
	Enabled     bool
	LastRun     time.Time
	NextRun     time.Time
	Runs        int64
	Failures    int64
	LastError   string
}

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// SchedulerConfig configures the scheduler loop.
type SchedulerConfig struct {
	Logger *slog.Logger

	// Timezone for schedule calculations. Calendar schedules like the
	// daily offer sweep fire at local midnight in this zone.
	Timezone *time.Location

	// TickInterval bounds how late a due job can start.
	TickInterval time.Duration

	// JobTimeout caps a single run. A run past the cap gets a cancelled
	// context; it is the job's duty to honor it.
	JobTimeout time.Duration
}

// DefaultSchedulerConfig returns the defaults used by the portal.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:       slog.Default(),
		Timezone:     time.UTC,
		TickInterval: time.Second,
		JobTimeout:   time.Minute,
	}
}

// Scheduler dispatches registered jobs according to their schedules.
// Jobs run concurrently with each other but a job never overlaps the
// scheduler's shutdown: Stop waits for in-flight runs.
type Scheduler struct {
	logger     *slog.Logger
	timezone   *time.Location
	tick       time.Duration
	jobTimeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = time.Minute
	}

	return &Scheduler{
		logger:     config.Logger,
		timezone:   config.Timezone,
		tick:       config.TickInterval,
		jobTimeout: config.JobTimeout,
		entries:    make(map[string]*entry),
	}
}

// Register adds a job. Names must be unique.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, taken := s.entries[name]; taken {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	e := &entry{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(time.Now().In(s.timezone)),
	}
	s.entries[name] = e

	s.logger.Info("job registered",
		slog.String("job", name),
		slog.String("schedule", schedule.String()),
		slog.Time("next_run", e.nextRun),
	)
	return nil
}

// Enable re-arms a disabled job from the current time.
func (s *Scheduler) Enable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	e.enabled = true
	e.nextRun = e.schedule.Next(time.Now().In(s.timezone))
	return nil
}

// Disable stops a job from firing. In-flight runs are not interrupted.
func (s *Scheduler) Disable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	e.enabled = false
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start launches the dispatch loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(loopCtx)

	s.logger.Info("scheduler started", slog.Int("jobs", len(s.entries)))
	return nil
}

// Stop cancels the loop and waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether the dispatch loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.dispatchDue(ctx, now.In(s.timezone))
		}
	}
}

// dispatchDue fires every enabled job whose time has come. The next
// fire time advances before the run so a slow job cannot pile up.
func (s *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if e.enabled && !e.nextRun.IsZero() && !now.Before(e.nextRun) {
			e.lastRun = now
			e.nextRun = e.schedule.Next(now)
			e.runs++
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			s.execute(ctx, e)
		}(e)
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry) {
	name := e.job.Name()
	started := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	err := e.job.Run(runCtx)
	cancel()
	elapsed := time.Since(started)

	s.mu.Lock()
	e.lastErr = err
	if err != nil {
		e.failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			slog.String("job", name),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Debug("job completed",
		slog.String("job", name),
		slog.Duration("elapsed", elapsed),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// INTROSPECTION
// ══════════════════════════════════════════════════════════════════════════════

// RunNow executes a job immediately, outside of its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	if ok {
		e.runs++
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	s.execute(ctx, e)

	s.mu.Lock()
	err := e.lastErr
	s.mu.Unlock()
	return err
}

// Jobs returns a snapshot of all registered jobs, sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.entries))
	for name, e := range s.entries {
		st := JobStatus{
			Name:        name,
			Description: e.job.Description(),
			Schedule:    e.schedule.String(),
			Enabled:     e.enabled,
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			Runs:        e.runs,
			Failures:    e.failures,
		}
		if e.lastErr != nil {
			st.LastError = e.lastErr.Error()
		}
		statuses = append(statuses, st)
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

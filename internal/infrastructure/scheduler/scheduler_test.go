package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubJob counts its runs and returns a fixed error.
type stubJob struct {
	name string
	err  error
	runs atomic.Int64
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "stub" }

func (j *stubJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func newTestScheduler(tick time.Duration) *Scheduler {
	cfg := DefaultSchedulerConfig()
	cfg.TickInterval = tick
	return NewScheduler(cfg)
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler(time.Second)

	require.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Second)), ErrNilJob)
	require.ErrorIs(t, s.Register(&stubJob{name: "a"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&stubJob{name: "b"}, NewIntervalSchedule(time.Second)))
	require.NoError(t, s.Register(&stubJob{name: "a"}, NewIntervalSchedule(time.Second)))
	require.ErrorIs(t, s.Register(&stubJob{name: "a"}, NewIntervalSchedule(time.Second)), ErrDuplicateJob)

	statuses := s.Jobs()
	require.Len(t, statuses, 2)
	// Sorted by name
	assert.Equal(t, "a", statuses[0].Name)
	assert.Equal(t, "b", statuses[1].Name)
	assert.True(t, statuses[0].Enabled)
	assert.False(t, statuses[0].NextRun.IsZero())
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := newTestScheduler(time.Second)
	require.NoError(t, s.Register(&stubJob{name: "sweep"}, NewIntervalSchedule(time.Hour)))

	require.ErrorIs(t, s.Disable("ghost"), ErrUnknownJob)
	require.ErrorIs(t, s.Enable("ghost"), ErrUnknownJob)

	require.NoError(t, s.Disable("sweep"))
	assert.False(t, s.Jobs()[0].Enabled)

	require.NoError(t, s.Enable("sweep"))
	assert.True(t, s.Jobs()[0].Enabled)
}

func TestScheduler_RunNow(t *testing.T) {
	s := newTestScheduler(time.Second)

	ok := &stubJob{name: "ok"}
	bad := &stubJob{name: "bad", err: errors.New("boom")}
	require.NoError(t, s.Register(ok, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.Register(bad, NewIntervalSchedule(time.Hour)))

	require.ErrorIs(t, s.RunNow(context.Background(), "ghost"), ErrUnknownJob)

	require.NoError(t, s.RunNow(context.Background(), "ok"))
	assert.Equal(t, int64(1), ok.runs.Load())

	err := s.RunNow(context.Background(), "bad")
	require.EqualError(t, err, "boom")

	for _, st := range s.Jobs() {
		if st.Name == "bad" {
			assert.Equal(t, int64(1), st.Failures)
			assert.Equal(t, "boom", st.LastError)
		}
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler(time.Second)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.ErrorIs(t, s.Stop(), ErrNotRunning)
}

func TestScheduler_DispatchesIntervalJob(t *testing.T) {
	s := newTestScheduler(5 * time.Millisecond)

	job := &stubJob{name: "poll"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.GreaterOrEqual(t, job.runs.Load(), int64(1))

	st := s.Jobs()[0]
	assert.GreaterOrEqual(t, st.Runs, int64(1))
	assert.Equal(t, int64(0), st.Failures)
}

func TestScheduler_DisabledJobDoesNotFire(t *testing.T) {
	s := newTestScheduler(5 * time.Millisecond)

	job := &stubJob{name: "idle"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(10*time.Millisecond)))
	require.NoError(t, s.Disable("idle"))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, int64(0), job.runs.Load())
}

func TestIntervalSchedule(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sched := NewIntervalSchedule(time.Minute)
	assert.Equal(t, base.Add(time.Minute), sched.Next(base))
	assert.Equal(t, "every 1m0s", sched.String())

	// A non-positive period falls back to one second
	fallback := NewIntervalSchedule(0)
	assert.Equal(t, base.Add(time.Second), fallback.Next(base))
}

func TestCronSchedule(t *testing.T) {
	sched, err := NewCronSchedule("0 0 * * *")
	require.NoError(t, err)
	assert.Equal(t, "0 0 * * *", sched.String())

	from := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)
	next := sched.Next(from)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), next)

	_, err = NewCronSchedule("not a cron")
	require.Error(t, err)

	assert.Panics(t, func() { MustCronSchedule("not a cron") })
}

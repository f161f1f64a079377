package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule fires at a fixed period. The period is measured from
// the previous fire time, not from job completion, so a slow run does
// not drift the cadence. Used by the theme/viewport sync poll.
type IntervalSchedule struct {
	period time.Duration
}

// NewIntervalSchedule creates a fixed-period schedule. Periods below
// the scheduler tick are effectively rounded up to it at dispatch time.
func NewIntervalSchedule(period time.Duration) *IntervalSchedule {
	if period <= 0 {
		period = time.Second
	}
	return &IntervalSchedule{period: period}
}

// Next implements Schedule.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.period)
}

// String implements Schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.period)
}

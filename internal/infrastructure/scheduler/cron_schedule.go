package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule adapts a standard 5-field cron expression to the Schedule
// interface. Used for calendar-based jobs like the daily offer sweep.
type CronSchedule struct {
	raw  string
	spec cron.Schedule
}

// NewCronSchedule parses a standard cron expression
// (minute hour day-of-month month day-of-week).
func NewCronSchedule(expr string) (*CronSchedule, error) {
	spec, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return &CronSchedule{raw: expr, spec: spec}, nil
}

// MustCronSchedule parses a cron expression and panics on error.
// For compile-time constant expressions only.
func MustCronSchedule(expr string) *CronSchedule {
	s, err := NewCronSchedule(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// Next implements Schedule.
func (s *CronSchedule) Next(t time.Time) time.Time {
	return s.spec.Next(t)
}

// String implements Schedule.
func (s *CronSchedule) String() string {
	return s.raw
}

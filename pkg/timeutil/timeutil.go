// Package timeutil provides timezone and calendar utilities for the portal.
// All students are located in Almaty, so monthly report keys, streak days
// and offer countdowns are computed against Almaty local time.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// AlmatyTZ is the Almaty timezone (UTC+5, no DST).
// Kazakhstan abolished DST in 2005, so this is constant year-round.
var AlmatyTZ = time.FixedZone("Asia/Almaty", 5*60*60)

// Now returns the current time in Almaty timezone.
func Now() time.Time {
	return time.Now().In(AlmatyTZ)
}

// ToAlmaty converts a time to Almaty timezone.
func ToAlmaty(t time.Time) time.Time {
	return t.In(AlmatyTZ)
}

// StartOfDay returns the start of the day (00:00:00) in Almaty timezone.
func StartOfDay(t time.Time) time.Time {
	almaty := ToAlmaty(t)
	return time.Date(almaty.Year(), almaty.Month(), almaty.Day(), 0, 0, 0, 0, AlmatyTZ)
}

// StartOfMonth returns the start of the month in Almaty timezone.
func StartOfMonth(t time.Time) time.Time {
	almaty := ToAlmaty(t)
	return time.Date(almaty.Year(), almaty.Month(), 1, 0, 0, 0, 0, AlmatyTZ)
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTH KEYS
// ══════════════════════════════════════════════════════════════════════════════

// MonthKeyFormat is the layout of monthly report keys ("2024-09").
// Keys sort chronologically when sorted lexicographically.
const MonthKeyFormat = "2006-01"

// MonthKey returns the monthly report key for the given time.
func MonthKey(t time.Time) string {
	return ToAlmaty(t).Format(MonthKeyFormat)
}

// ParseMonthKey parses a monthly report key back into the first day
// of that month in Almaty timezone.
func ParseMonthKey(key string) (time.Time, error) {
	return time.ParseInLocation(MonthKeyFormat, key, AlmatyTZ)
}

// PrevMonthKey returns the key of the month before the given key.
func PrevMonthKey(key string) (string, error) {
	t, err := ParseMonthKey(key)
	if err != nil {
		return "", err
	}
	return MonthKey(t.AddDate(0, -1, 0)), nil
}

// MonthLabelRu returns a human-readable Russian label for a month key,
// e.g. "2024-09" becomes "Сентябрь 2024". Malformed keys are returned as is.
func MonthLabelRu(key string) string {
	t, err := ParseMonthKey(key)
	if err != nil {
		return key
	}
	return fmt.Sprintf("%s %d", MonthNameRu(t.Month()), t.Year())
}

// MonthNameRu returns the Russian name for a month.
func MonthNameRu(m time.Month) string {
	names := []string{
		"", "Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
		"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
	}
	if int(m) >= 1 && int(m) <= 12 {
		return names[m]
	}
	return ""
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK DAYS
// ══════════════════════════════════════════════════════════════════════════════

// IsSameDay checks if two times are on the same day in Almaty timezone.
func IsSameDay(t1, t2 time.Time) bool {
	a1, a2 := ToAlmaty(t1), ToAlmaty(t2)
	return a1.Year() == a2.Year() && a1.YearDay() == a2.YearDay()
}

// IsConsecutiveDay checks if t2 is the day after t1.
func IsConsecutiveDay(t1, t2 time.Time) bool {
	a1, a2 := ToAlmaty(t1), ToAlmaty(t2)
	nextDay := a1.AddDate(0, 0, 1)
	return IsSameDay(nextDay, a2)
}

// DaysBetween calculates the number of days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a1 := StartOfDay(t1)
	a2 := StartOfDay(t2)
	duration := a2.Sub(a1)
	days := int(duration.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// ══════════════════════════════════════════════════════════════════════════════
// COUNTDOWNS
// ══════════════════════════════════════════════════════════════════════════════

// FormatCountdown renders the time left until an offer deadline,
// e.g. "2д 5ч", "3ч 12м", "45с". Elapsed deadlines render as "истекло".
func FormatCountdown(until time.Duration) string {
	if until <= 0 {
		return "истекло"
	}

	switch {
	case until >= 24*time.Hour:
		days := int(until.Hours()) / 24
		hours := int(until.Hours()) % 24
		return fmt.Sprintf("%dд %dч", days, hours)
	case until >= time.Hour:
		hours := int(until.Hours())
		mins := int(until.Minutes()) % 60
		return fmt.Sprintf("%dч %dм", hours, mins)
	case until >= time.Minute:
		mins := int(until.Minutes())
		secs := int(until.Seconds()) % 60
		return fmt.Sprintf("%dм %dс", mins, secs)
	default:
		return fmt.Sprintf("%dс", int(until.Seconds()))
	}
}

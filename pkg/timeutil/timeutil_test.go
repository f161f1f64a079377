package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthKey_RoundTrip(t *testing.T) {
	moment := time.Date(2024, time.September, 15, 10, 30, 0, 0, time.UTC)
	key := MonthKey(moment)
	assert.Equal(t, "2024-09", key)

	parsed, err := ParseMonthKey(key)
	require.NoError(t, err)
	assert.Equal(t, 2024, parsed.Year())
	assert.Equal(t, time.September, parsed.Month())
}

func TestMonthKey_TimezoneBoundary(t *testing.T) {
	// 23:00 UTC on the last day of the month is already the next month in Almaty (UTC+5).
	moment := time.Date(2024, time.August, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-09", MonthKey(moment))
}

func TestPrevMonthKey(t *testing.T) {
	prev, err := PrevMonthKey("2024-01")
	require.NoError(t, err)
	assert.Equal(t, "2023-12", prev)

	_, err = PrevMonthKey("not-a-key")
	assert.Error(t, err)
}

func TestMonthLabelRu(t *testing.T) {
	assert.Equal(t, "Сентябрь 2024", MonthLabelRu("2024-09"))
	assert.Equal(t, "garbage", MonthLabelRu("garbage"))
}

func TestStreakDays(t *testing.T) {
	d1 := time.Date(2024, time.September, 1, 20, 0, 0, 0, AlmatyTZ)
	d2 := time.Date(2024, time.September, 2, 8, 0, 0, 0, AlmatyTZ)

	assert.True(t, IsConsecutiveDay(d1, d2))
	assert.False(t, IsConsecutiveDay(d2, d1))
	assert.False(t, IsSameDay(d1, d2))
	assert.Equal(t, 1, DaysBetween(d1, d2))
}

func TestFormatCountdown(t *testing.T) {
	assert.Equal(t, "истекло", FormatCountdown(0))
	assert.Equal(t, "истекло", FormatCountdown(-time.Minute))
	assert.Equal(t, "45с", FormatCountdown(45*time.Second))
	assert.Equal(t, "2м 5с", FormatCountdown(2*time.Minute+5*time.Second))
	assert.Equal(t, "3ч 12м", FormatCountdown(3*time.Hour+12*time.Minute))
	assert.Equal(t, "2д 5ч", FormatCountdown(53*time.Hour))
}

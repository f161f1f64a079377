package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyEntry_Total(t *testing.T) {
	entry := MonthlyEntry{Attendance: 300, Homework: 400, Tasks: 200, Penalty: 150}
	assert.Equal(t, 750, entry.Total())

	assert.True(t, MonthlyEntry{}.IsZero())
	assert.False(t, entry.IsZero())
}

func TestConvertExperience_BelowRateRejected(t *testing.T) {
	rec := newTestRecord(t, 0)
	rec.RecordMonth("2026-07", MonthlyEntry{Attendance: 500, Homework: 400})

	credited, err := rec.ConvertExperience()

	assert.ErrorIs(t, err, ErrInsufficientExperience)
	assert.Zero(t, credited)
	assert.Equal(t, 900, rec.LedgerExperience())
	assert.Equal(t, Aqcha(0), rec.Aqcha)
}

func TestConvertExperience_RemainderBurnsWithLedger(t *testing.T) {
	rec := newTestRecord(t, 5)
	rec.RecordMonth("2026-06", MonthlyEntry{Attendance: 900, Homework: 800})
	rec.RecordMonth("2026-07", MonthlyEntry{Tasks: 850, Penalty: 100})
	require.Equal(t, 2450, rec.LedgerExperience())

	credited, err := rec.ConvertExperience()
	require.NoError(t, err)

	assert.Equal(t, 2, credited)
	assert.Equal(t, Aqcha(7), rec.Aqcha)
	// Остаток 450 XP сгорает вместе с журналом.
	assert.Equal(t, 0, rec.LedgerExperience())
	assert.True(t, rec.Months["2026-06"].IsZero())
	assert.True(t, rec.Months["2026-07"].IsZero())
	// Ключи месяцев не удаляются.
	assert.Len(t, rec.Months, 2)
}

func TestConvertibleAqcha(t *testing.T) {
	rec := newTestRecord(t, 0)
	assert.Equal(t, 0, rec.ConvertibleAqcha())

	rec.RecordMonth("2026-08", MonthlyEntry{Attendance: 999})
	assert.Equal(t, 0, rec.ConvertibleAqcha())

	rec.RecordMonth("2026-08", MonthlyEntry{Attendance: 1000})
	assert.Equal(t, 1, rec.ConvertibleAqcha())

	rec.RecordMonth("2026-08", MonthlyEntry{Attendance: 3500})
	assert.Equal(t, 3, rec.ConvertibleAqcha())
}

func TestTotalPenalty(t *testing.T) {
	rec := newTestRecord(t, 0)
	rec.RecordMonth("2026-06", MonthlyEntry{Attendance: 100, Penalty: 30})
	rec.RecordMonth("2026-07", MonthlyEntry{Penalty: 70})

	assert.Equal(t, 100, rec.TotalPenalty())
}

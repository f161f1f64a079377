package toast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsDuration(t *testing.T) {
	toast, err := New(SeveritySuccess, "Покупка", "Товар куплен")
	require.NoError(t, err)

	assert.Equal(t, DefaultDuration, toast.Duration)
	assert.Equal(t, ID(0), toast.ID)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("fatal", "Заголовок", "")
	assert.ErrorIs(t, err, ErrInvalidSeverity)

	_, err = New(SeverityError, "", "текст")
	assert.ErrorIs(t, err, ErrEmptyTitle)
}

func TestExpiresAt(t *testing.T) {
	created := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	toast := Toast{CreatedAt: created, Duration: 4 * time.Second}

	assert.Equal(t, created.Add(4*time.Second), toast.ExpiresAt())
}

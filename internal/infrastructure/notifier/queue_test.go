package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/toast"
)

func TestEnqueue_IDsStrictlyIncrease(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	first, err := q.Enqueue(toast.SeveritySuccess, "Один", "")
	require.NoError(t, err)
	second, err := q.Enqueue(toast.SeverityError, "Два", "")
	require.NoError(t, err)
	third, err := q.Enqueue(toast.SeverityInfo, "Три", "")
	require.NoError(t, err)

	assert.True(t, first < second && second < third)
}

func TestVisible_FollowsEnqueueOrder(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	q.Enqueue(toast.SeveritySuccess, "Один", "")
	q.Enqueue(toast.SeverityError, "Два", "")
	q.Enqueue(toast.SeverityInfo, "Три", "")

	visible := q.Visible()
	require.Len(t, visible, 3)
	assert.Equal(t, "Один", visible[0].Title)
	assert.Equal(t, "Два", visible[1].Title)
	assert.Equal(t, "Три", visible[2].Title)
}

func TestDismiss_IsIdempotent(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	id, err := q.Enqueue(toast.SeveritySuccess, "Покупка", "")
	require.NoError(t, err)

	q.Dismiss(id)
	assert.Zero(t, q.Len())

	// Повторное и чужое удаление - no-op.
	q.Dismiss(id)
	q.Dismiss(toast.ID(999))
	assert.Zero(t, q.Len())
}

func TestAutoRemoval_FiresAfterDuration(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	_, err := q.EnqueueWithDuration(toast.SeveritySuccess, "Быстрый", "", 20*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())

	assert.Eventually(t, func() bool {
		return q.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestEnqueue_RejectsInvalidToast(t *testing.T) {
	q := NewQueue()
	defer q.Close()

	_, err := q.Enqueue("fatal", "Заголовок", "")
	assert.ErrorIs(t, err, toast.ErrInvalidSeverity)

	_, err = q.Enqueue(toast.SeverityError, "", "")
	assert.ErrorIs(t, err, toast.ErrEmptyTitle)
}

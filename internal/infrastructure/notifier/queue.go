// Package notifier implements the in-memory toast queue. Toasts are
// session-local: they are never persisted and are safe to lose on restart.
package notifier

import (
	"sync"
	"time"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/toast"
)

// Queue holds visible toasts and schedules their automatic removal.
//
// Every enqueued toast gets a strictly increasing id and a removal timer.
// The timer callback may fire after the toast was dismissed by hand; it
// checks current presence first, so late callbacks are harmless no-ops.
type Queue struct {
	mu     sync.Mutex
	nextID toast.ID
	order  []toast.ID
	items  map[toast.ID]toast.Toast
	timers map[toast.ID]*time.Timer
	closed bool

	now func() time.Time
}

// NewQueue creates an empty toast queue.
func NewQueue() *Queue {
	return &Queue{
		items:  make(map[toast.ID]toast.Toast),
		timers: make(map[toast.ID]*time.Timer),
		now:    time.Now,
	}
}

// Enqueue creates a toast with the default duration and schedules its
// removal. Returns the assigned id.
func (q *Queue) Enqueue(severity toast.Severity, title, message string) (toast.ID, error) {
	t, err := toast.New(severity, title, message)
	if err != nil {
		return 0, err
	}
	return q.push(t), nil
}

// EnqueueWithDuration creates a toast with an explicit lifetime.
func (q *Queue) EnqueueWithDuration(severity toast.Severity, title, message string, d time.Duration) (toast.ID, error) {
	t, err := toast.New(severity, title, message)
	if err != nil {
		return 0, err
	}
	if d > 0 {
		t.Duration = d
	}
	return q.push(t), nil
}

func (q *Queue) push(t toast.Toast) toast.ID {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	t.ID = q.nextID
	t.CreatedAt = q.now()

	q.items[t.ID] = t
	q.order = append(q.order, t.ID)

	if !q.closed {
		id := t.ID
		q.timers[id] = time.AfterFunc(t.Duration, func() {
			q.Dismiss(id)
		})
	}
	return t.ID
}

// Dismiss removes a toast. Dismissing an unknown or already removed id
// is a no-op.
func (q *Queue) Dismiss(id toast.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.items[id]; !ok {
		return
	}
	delete(q.items, id)

	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}

	for i, existing := range q.order {
		if existing == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Visible returns the toasts currently on screen in enqueue order.
func (q *Queue) Visible() []toast.Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]toast.Toast, 0, len(q.order))
	for _, id := range q.order {
		if t, ok := q.items[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of visible toasts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops all removal timers and drops pending toasts.
// Further enqueues still assign ids but schedule no timers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
}

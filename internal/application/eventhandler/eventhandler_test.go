package eventhandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/shared"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/messaging"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/notifier"
)

type countingCounter struct{ n int }

func (c *countingCounter) Inc() { c.n++ }

func TestOnThemeChanged_EnqueuesToast(t *testing.T) {
	queue := notifier.NewQueue()
	defer queue.Close()

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()

	counter := &countingCounter{}
	h := NewOnThemeChangedHandler(queue, counter, nil)
	require.NoError(t, h.Attach(bus))

	require.NoError(t, bus.Publish(shared.NewThemeChangedEvent("evt-1", "light", "dark")))

	visible := queue.Visible()
	require.Len(t, visible, 1)
	assert.Contains(t, visible[0].Message, "dark")
	assert.Equal(t, 1, counter.n)
}

func TestEventLogger_NeverFails(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()

	l := NewEventLogger(nil)
	require.NoError(t, l.Attach(bus))

	assert.NoError(t, bus.Publish(shared.NewThemeChangedEvent("evt-1", "", "light")))
	assert.NoError(t, l.Handle(shared.NewPurchaseCompletedEvent("evt-2", "s", "p", 5, 10, "buy")))
}

package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-reward-hub/internal/application/viewstate"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/shared"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/persistence/memory"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func TestThemeSyncJob_ReconcilesDivergence(t *testing.T) {
	store := memory.NewThemeStore()
	pub := &capturePublisher{}
	tracker := viewstate.NewTracker(store, pub, nil)

	job := NewThemeSyncJob(tracker, nil)
	assert.Equal(t, "theme_sync", job.Name())

	require.NoError(t, store.SetTheme(context.Background(), viewstate.ThemeDark))
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, viewstate.ThemeDark, tracker.Theme())
}

func TestOfferSweepJob_PublishesExpired(t *testing.T) {
	board, err := catalog.NewOfferBoard([]catalog.SpecialOffer{
		{ID: "gone", Title: "Истёкшая", OriginalPrice: 50, DiscountedPrice: 20,
			ExpiresAt: time.Now().Add(-time.Hour)},
		{ID: "live", Title: "Живая", OriginalPrice: 50, DiscountedPrice: 30,
			ExpiresAt: time.Now().Add(time.Hour)},
	})
	require.NoError(t, err)

	pub := &capturePublisher{}
	job := NewOfferSweepJob(board, pub, nil)
	assert.Equal(t, "offer_sweep", job.Name())

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventOffersSwept, pub.events[0].EventType())
	assert.Equal(t, []string{"gone"}, pub.events[0].Payload()["expired_ids"])
}

func TestOfferSweepJob_QuietWhenNothingExpired(t *testing.T) {
	board, err := catalog.NewOfferBoard([]catalog.SpecialOffer{
		{ID: "live", Title: "Живая", OriginalPrice: 50, DiscountedPrice: 30,
			ExpiresAt: time.Now().Add(time.Hour)},
	})
	require.NoError(t, err)

	pub := &capturePublisher{}
	require.NoError(t, NewOfferSweepJob(board, pub, nil).Run(context.Background()))
	assert.Empty(t, pub.events)
}

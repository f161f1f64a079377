package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOffer(id string, expiresAt time.Time) SpecialOffer {
	return SpecialOffer{
		ID:              id,
		Title:           "Предложение " + id,
		OriginalPrice:   100,
		DiscountedPrice: 60,
		ExpiresAt:       expiresAt,
	}
}

func TestSpecialOffer_ClaimableStrictBoundary(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	offer := validOffer("o1", now.Add(time.Hour))

	assert.True(t, offer.Claimable(now))

	// В момент истечения предложение уже недоступно.
	assert.False(t, offer.Claimable(offer.ExpiresAt))
	assert.False(t, offer.Claimable(offer.ExpiresAt.Add(time.Second)))
}

func TestSpecialOffer_Remaining(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	offer := validOffer("o1", now.Add(30*time.Minute))

	assert.Equal(t, 30*time.Minute, offer.Remaining(now))
	assert.Equal(t, time.Duration(0), offer.Remaining(now.Add(time.Hour)))
}

func TestSpecialOffer_DiscountPercent(t *testing.T) {
	offer := validOffer("o1", time.Now().Add(time.Hour))
	assert.Equal(t, 40, offer.DiscountPercent())
}

func TestSpecialOffer_Validate(t *testing.T) {
	now := time.Now()
	assert.NoError(t, validOffer("o1", now).Validate())

	bad := validOffer("o1", now)
	bad.DiscountedPrice = 100
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOffer)

	bad = validOffer("o1", now)
	bad.ExpiresAt = time.Time{}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOffer)
}

func TestOfferBoard_ActiveAndExpired(t *testing.T) {
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	board, err := NewOfferBoard([]SpecialOffer{
		validOffer("live", now.Add(time.Hour)),
		validOffer("dead", now.Add(-time.Hour)),
	})
	require.NoError(t, err)

	active := board.Active(now)
	require.Len(t, active, 1)
	assert.Equal(t, "live", active[0].ID)

	expired := board.Expired(now)
	require.Len(t, expired, 1)
	assert.Equal(t, "dead", expired[0].ID)

	// Истёкшее предложение остаётся в общем списке.
	assert.Len(t, board.Offers(), 2)
}

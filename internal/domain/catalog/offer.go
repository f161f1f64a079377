package catalog

import (
	"fmt"
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SPECIAL OFFERS
// Предложения с ограниченным сроком. Истечение не удаляет предложение
// из списка - оно просто перестаёт быть доступным для покупки.
// ══════════════════════════════════════════════════════════════════════════════

// SpecialOffer - предложение со скидкой и сроком действия.
type SpecialOffer struct {
	// ID - уникальный идентификатор предложения.
	ID string

	// Title - заголовок предложения.
	Title string

	// Description - описание.
	Description string

	// OriginalPrice - цена без скидки.
	OriginalPrice int

	// DiscountedPrice - цена со скидкой. Строго меньше OriginalPrice.
	DiscountedPrice int

	// ExpiresAt - момент истечения. Предложение доступно строго до него.
	ExpiresAt time.Time
}

// Claimable проверяет, что предложение ещё можно купить.
// Граница строгая: в момент ExpiresAt предложение уже недоступно.
func (o SpecialOffer) Claimable(now time.Time) bool {
	return now.Before(o.ExpiresAt)
}

// Remaining возвращает время до истечения. Ноль, если срок вышел.
func (o SpecialOffer) Remaining(now time.Time) time.Duration {
	if !o.Claimable(now) {
		return 0
	}
	return o.ExpiresAt.Sub(now)
}

// DiscountPercent возвращает процент скидки, округлённый до целого.
func (o SpecialOffer) DiscountPercent() int {
	if o.OriginalPrice <= 0 {
		return 0
	}
	return int(math.Round((1 - float64(o.DiscountedPrice)/float64(o.OriginalPrice)) * 100))
}

// Validate проверяет инварианты предложения.
func (o SpecialOffer) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidOffer)
	}
	if o.Title == "" {
		return fmt.Errorf("%w: %s: empty title", ErrInvalidOffer, o.ID)
	}
	if o.DiscountedPrice <= 0 {
		return fmt.Errorf("%w: %s: discounted price must be positive", ErrInvalidOffer, o.ID)
	}
	if o.DiscountedPrice >= o.OriginalPrice {
		return fmt.Errorf("%w: %s: discounted price must be below original", ErrInvalidOffer, o.ID)
	}
	if o.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: %s: missing expiry", ErrInvalidOffer, o.ID)
	}
	return nil
}

// OfferBoard - неизменяемый набор предложений с индексом по идентификатору.
type OfferBoard struct {
	offers []SpecialOffer
	byID   map[string]SpecialOffer
}

// NewOfferBoard создаёт доску предложений с валидацией каждого.
func NewOfferBoard(offers []SpecialOffer) (*OfferBoard, error) {
	byID := make(map[string]SpecialOffer, len(offers))
	for _, o := range offers {
		if err := o.Validate(); err != nil {
			return nil, err
		}
		if _, exists := byID[o.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidOffer, o.ID)
		}
		byID[o.ID] = o
	}

	return &OfferBoard{
		offers: append([]SpecialOffer(nil), offers...),
		byID:   byID,
	}, nil
}

// Offers возвращает копию всех предложений, включая истёкшие.
func (b *OfferBoard) Offers() []SpecialOffer {
	return append([]SpecialOffer(nil), b.offers...)
}

// Active возвращает предложения, доступные на указанный момент.
func (b *OfferBoard) Active(now time.Time) []SpecialOffer {
	active := make([]SpecialOffer, 0, len(b.offers))
	for _, o := range b.offers {
		if o.Claimable(now) {
			active = append(active, o)
		}
	}
	return active
}

// Expired возвращает предложения, срок которых вышел на указанный момент.
func (b *OfferBoard) Expired(now time.Time) []SpecialOffer {
	expired := make([]SpecialOffer, 0)
	for _, o := range b.offers {
		if !o.Claimable(now) {
			expired = append(expired, o)
		}
	}
	return expired
}

// Offer возвращает предложение по идентификатору.
func (b *OfferBoard) Offer(id string) (SpecialOffer, error) {
	o, ok := b.byID[id]
	if !ok {
		return SpecialOffer{}, fmt.Errorf("%w: %q", ErrOfferNotFound, id)
	}
	return o, nil
}

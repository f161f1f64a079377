package shared

import "time"

// EventType names a kind of domain event.
type EventType string

// Every state change the rest of the system reacts to is announced as
// one of these events.
const (
	EventPurchaseCompleted   EventType = "transaction.purchase_completed"
	EventPurchaseRejected    EventType = "transaction.purchase_rejected"
	EventCheckoutCompleted   EventType = "transaction.checkout_completed"
	EventOfferClaimed        EventType = "transaction.offer_claimed"
	EventExperienceConverted EventType = "transaction.experience_converted"

	EventAchievementUnlocked EventType = "achievement.unlocked"

	EventThemeChanged       EventType = "viewstate.theme_changed"
	EventDeviceClassChanged EventType = "viewstate.device_class_changed"

	EventOffersSwept EventType = "system.offers_swept"
)

// Event is what travels over the bus.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string

	// Payload flattens the event for structured logging.
	Payload() map[string]interface{}
}

// EventHandler consumes one event. A non-nil error is logged by the
// bus, never propagated to the publisher.
type EventHandler func(event Event) error

// EventPublisher is the write half of the bus.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber is the read half of the bus.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines both halves.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// ═══════════════════════════════════════════════════════════════════════════
// Base event
// ═══════════════════════════════════════════════════════════════════════════

// BaseEvent carries the fields every event shares. Concrete events embed
// it and add their own payload.
type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent stamps a fresh event. The id comes from the publisher;
// infrastructure uses UUIDs.
func NewBaseEvent(id string, eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:          id,
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Transaction events
// ═══════════════════════════════════════════════════════════════════════════

// PurchaseCompletedEvent announces one successfully debited product,
// whether bought directly or as a cart line.
type PurchaseCompletedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	ProductID  string `json:"product_id"`
	Amount     int    `json:"amount"`
	NewBalance int    `json:"new_balance"`
	Source     string `json:"source"`
}

func (e PurchaseCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"product_id":  e.ProductID,
		"amount":      e.Amount,
		"new_balance": e.NewBalance,
		"source":      e.Source,
	}
}

func NewPurchaseCompletedEvent(id, studentID, productID string, amount, newBalance int, source string) PurchaseCompletedEvent {
	return PurchaseCompletedEvent{
		BaseEvent:  NewBaseEvent(id, EventPurchaseCompleted, studentID),
		StudentID:  studentID,
		ProductID:  productID,
		Amount:     amount,
		NewBalance: newBalance,
		Source:     source,
	}
}

// PurchaseRejectedEvent announces a transaction that failed a business
// check. The record is untouched when this fires.
type PurchaseRejectedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	ProductID string `json:"product_id"`
	Amount    int    `json:"amount"`
	Balance   int    `json:"balance"`
	Reason    string `json:"reason"`
}

func (e PurchaseRejectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"product_id": e.ProductID,
		"amount":     e.Amount,
		"balance":    e.Balance,
		"reason":     e.Reason,
	}
}

func NewPurchaseRejectedEvent(id, studentID, productID string, amount, balance int, reason string) PurchaseRejectedEvent {
	return PurchaseRejectedEvent{
		BaseEvent: NewBaseEvent(id, EventPurchaseRejected, studentID),
		StudentID: studentID,
		ProductID: productID,
		Amount:    amount,
		Balance:   balance,
		Reason:    reason,
	}
}

// CheckoutCompletedEvent summarizes a whole cart checkout. Emitted once
// after the per-item PurchaseCompletedEvent stream.
type CheckoutCompletedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	ItemCount  int    `json:"item_count"`
	Total      int    `json:"total"`
	NewBalance int    `json:"new_balance"`
}

func (e CheckoutCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"item_count":  e.ItemCount,
		"total":       e.Total,
		"new_balance": e.NewBalance,
	}
}

func NewCheckoutCompletedEvent(id, studentID string, itemCount, total, newBalance int) CheckoutCompletedEvent {
	return CheckoutCompletedEvent{
		BaseEvent:  NewBaseEvent(id, EventCheckoutCompleted, studentID),
		StudentID:  studentID,
		ItemCount:  itemCount,
		Total:      total,
		NewBalance: newBalance,
	}
}

// OfferClaimedEvent announces a claimed time-limited offer.
type OfferClaimedEvent struct {
	BaseEvent
	StudentID       string `json:"student_id"`
	OfferID         string `json:"offer_id"`
	DiscountedPrice int    `json:"discounted_price"`
	NewBalance      int    `json:"new_balance"`
}

func (e OfferClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":       e.StudentID,
		"offer_id":         e.OfferID,
		"discounted_price": e.DiscountedPrice,
		"new_balance":      e.NewBalance,
	}
}

func NewOfferClaimedEvent(id, studentID, offerID string, discountedPrice, newBalance int) OfferClaimedEvent {
	return OfferClaimedEvent{
		BaseEvent:       NewBaseEvent(id, EventOfferClaimed, studentID),
		StudentID:       studentID,
		OfferID:         offerID,
		DiscountedPrice: discountedPrice,
		NewBalance:      newBalance,
	}
}

// ExperienceConvertedEvent announces an experience-to-currency exchange.
type ExperienceConvertedEvent struct {
	BaseEvent
	StudentID   string `json:"student_id"`
	ConvertedXP int    `json:"converted_xp"`
	Credited    int    `json:"credited"`
	NewBalance  int    `json:"new_balance"`
}

func (e ExperienceConvertedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":   e.StudentID,
		"converted_xp": e.ConvertedXP,
		"credited":     e.Credited,
		"new_balance":  e.NewBalance,
	}
}

func NewExperienceConvertedEvent(id, studentID string, convertedXP, credited, newBalance int) ExperienceConvertedEvent {
	return ExperienceConvertedEvent{
		BaseEvent:   NewBaseEvent(id, EventExperienceConverted, studentID),
		StudentID:   studentID,
		ConvertedXP: convertedXP,
		Credited:    credited,
		NewBalance:  newBalance,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent announces a newly opened achievement and the
// credit it granted.
type AchievementUnlockedEvent struct {
	BaseEvent
	StudentID       string `json:"student_id"`
	AchievementCode string `json:"achievement_code"`
	Reward          int    `json:"reward"`
}

func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":       e.StudentID,
		"achievement_code": e.AchievementCode,
		"reward":           e.Reward,
	}
}

func NewAchievementUnlockedEvent(id, studentID, code string, reward int) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:       NewBaseEvent(id, EventAchievementUnlocked, studentID),
		StudentID:       studentID,
		AchievementCode: code,
		Reward:          reward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// View state events
// ═══════════════════════════════════════════════════════════════════════════

// ThemeChangedEvent fires when the external theme key diverges from the
// cached value and the tracker reconciles it.
type ThemeChangedEvent struct {
	BaseEvent
	OldTheme string `json:"old_theme"`
	NewTheme string `json:"new_theme"`
}

func (e ThemeChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_theme": e.OldTheme,
		"new_theme": e.NewTheme,
	}
}

func NewThemeChangedEvent(id, oldTheme, newTheme string) ThemeChangedEvent {
	return ThemeChangedEvent{
		BaseEvent: NewBaseEvent(id, EventThemeChanged, "viewstate"),
		OldTheme:  oldTheme,
		NewTheme:  newTheme,
	}
}

// DeviceClassChangedEvent fires when the viewport width crosses the
// mobile breakpoint.
type DeviceClassChangedEvent struct {
	BaseEvent
	OldClass string `json:"old_class"`
	NewClass string `json:"new_class"`
	Width    int    `json:"width"`
}

func (e DeviceClassChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_class": e.OldClass,
		"new_class": e.NewClass,
		"width":     e.Width,
	}
}

func NewDeviceClassChangedEvent(id, oldClass, newClass string, width int) DeviceClassChangedEvent {
	return DeviceClassChangedEvent{
		BaseEvent: NewBaseEvent(id, EventDeviceClassChanged, "viewstate"),
		OldClass:  oldClass,
		NewClass:  newClass,
		Width:     width,
	}
}

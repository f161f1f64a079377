package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/shared"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/toast"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CheckoutCommand оформляет покупку всей корзины одной транзакцией.
type CheckoutCommand struct {
	// Cart - корзина с товарами. Очищается только при успехе.
	Cart *Cart
}

// Validate проверяет корректность команды.
func (c CheckoutCommand) Validate() error {
	if c.Cart == nil {
		return fmt.Errorf("cart is required")
	}
	if c.Cart.Len() == 0 {
		return ErrEmptyCart
	}
	return nil
}

// ErrEmptyCart - попытка оформить пустую корзину.
var ErrEmptyCart = fmt.Errorf("cart is empty")

// CheckoutResult содержит результат оформления корзины.
type CheckoutResult struct {
	// Items - купленные товары в порядке добавления.
	Items []catalog.Product

	// Total - списанная сумма.
	Total int

	// NewBalance - баланс после списания.
	NewBalance int

	// LeveledUp - вырос ли уровень от бонусного опыта.
	LeveledUp bool

	// ToastID - идентификатор тоста об успехе.
	ToastID toast.ID

	// Events - опубликованные доменные события: по одному на товар
	// плюс итоговое событие оформления.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CheckoutHandler оформляет корзину атомарно.
// Сумма корзины сверяется с балансом до списания: если не хватает хотя бы
// на один товар, не покупается ничего и корзина остаётся нетронутой.
type CheckoutHandler struct {
	records   student.RecordRepository
	ledger    student.AuditLedger
	notifier  Notifier
	publisher shared.EventPublisher
	recorder  TransactionRecorder
	logger    *slog.Logger

	now   clock
	newID func() string
}

// NewCheckoutHandler создаёт обработчик оформления корзины.
func NewCheckoutHandler(
	records student.RecordRepository,
	ledger student.AuditLedger,
	notifier Notifier,
	publisher shared.EventPublisher,
	recorder TransactionRecorder,
	logger *slog.Logger,
) *CheckoutHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CheckoutHandler{
		records:   records,
		ledger:    ledger,
		notifier:  notifier,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       defaultClock,
		newID:     uuid.NewString,
	}
}

// Handle оформляет корзину.
func (h *CheckoutHandler) Handle(ctx context.Context, cmd CheckoutCommand) (*CheckoutResult, error) {
	started := h.now()

	// 1. Валидация команды
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	items := cmd.Cart.Items()
	total := cmd.Cart.Total()

	// 2. Загрузка записи студента
	rec, err := h.records.Load(ctx)
	if err != nil {
		h.recorder.RecordTransaction("checkout", "no_record", h.now().Sub(started).Seconds())
		return nil, fmt.Errorf("load record: %w", err)
	}

	// 3. Сверка суммы корзины с балансом до любых списаний
	if !rec.Aqcha.CanAfford(total) {
		shortfall := rec.Aqcha.Shortfall(total)
		h.notifier.Enqueue(
			toast.SeverityError,
			"Недостаточно средств",
			fmt.Sprintf("Не хватает %d aqcha для оформления корзины", shortfall),
		)

		rejected := shared.NewPurchaseRejectedEvent(
			h.newID(), rec.ID, "", total, int(rec.Aqcha), "insufficient_funds",
		)
		h.publishEvent(rejected)
		h.recorder.RecordTransaction("checkout", "rejected", h.now().Sub(started).Seconds())

		return nil, fmt.Errorf("checkout: %w", student.ErrInsufficientFunds)
	}

	// 4. Списание каждой позиции
	// Сумма проверена заранее, поэтому отдельные списания не могут отказать.
	leveled := false
	for _, p := range items {
		if err := rec.RecordPurchase(p.ID, p.Price); err != nil {
			return nil, fmt.Errorf("record purchase %s: %w", p.ID, err)
		}
		if p.Bonuses.Experience > 0 {
			up, _ := rec.AddExperience(p.Bonuses.Experience)
			leveled = leveled || up
		}
		if p.Bonuses.Streak > 0 {
			_ = rec.ExtendStreak(p.Bonuses.Streak)
		}
		if p.Bonuses.Cashback > 0 {
			_ = rec.Credit(p.Bonuses.Cashback)
		}
	}

	// 5. Сохранение записи целиком
	if err := h.records.Persist(ctx, rec); err != nil {
		h.recorder.RecordTransaction("checkout", "persist_error", h.now().Sub(started).Seconds())
		return nil, fmt.Errorf("persist record: %w", err)
	}

	// 6. Журнал аудита
	h.appendAudit(ctx, rec, total)

	// 7. Корзина очищается только после успешного сохранения
	cmd.Cart.Clear()

	// 8. Уведомление и события
	toastID, _ := h.notifier.Enqueue(
		toast.SeveritySuccess,
		"Корзина оформлена",
		fmt.Sprintf("%d товара(ов) за %d aqcha", len(items), total),
	)

	events := make([]shared.Event, 0, len(items)+1)
	for _, p := range items {
		completed := shared.NewPurchaseCompletedEvent(
			h.newID(), rec.ID, p.ID, p.Price, int(rec.Aqcha), SourceCheckout,
		)
		h.publishEvent(completed)
		events = append(events, completed)
	}

	// Итоговое событие оформления публикуется после пособытийных.
	summary := shared.NewCheckoutCompletedEvent(
		h.newID(), rec.ID, len(items), total, int(rec.Aqcha),
	)
	h.publishEvent(summary)
	events = append(events, summary)

	h.recorder.RecordTransaction("checkout", "success", h.now().Sub(started).Seconds())
	h.logger.Info("cart checked out",
		slog.Int("items", len(items)),
		slog.Int("total", total),
		slog.Int("balance", int(rec.Aqcha)),
	)

	return &CheckoutResult{
		Items:      items,
		Total:      total,
		NewBalance: int(rec.Aqcha),
		LeveledUp:  leveled,
		ToastID:    toastID,
		Events:     events,
	}, nil
}

func (h *CheckoutHandler) publishEvent(event shared.Event) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish event",
			slog.String("event_type", string(event.EventType())),
			slog.String("error", err.Error()),
		)
	}
}

func (h *CheckoutHandler) appendAudit(ctx context.Context, rec *student.Record, total int) {
	if h.ledger == nil {
		return
	}

	entry := student.LedgerEntry{
		StudentID:  rec.ID,
		Kind:       "debit",
		Amount:     total,
		Balance:    int(rec.Aqcha),
		Source:     SourceCheckout,
		OccurredAt: h.now(),
	}
	if err := h.ledger.Append(ctx, entry); err != nil {
		h.logger.Warn("failed to append audit entry",
			slog.String("error", err.Error()),
		)
	}
}

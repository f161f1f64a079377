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

// ClaimOfferCommand покупает предложение с ограниченным сроком.
type ClaimOfferCommand struct {
	// OfferID - идентификатор предложения.
	OfferID string
}

// Validate проверяет корректность команды.
func (c ClaimOfferCommand) Validate() error {
	if c.OfferID == "" {
		return fmt.Errorf("offer id is required")
	}
	return nil
}

// ClaimOfferResult содержит результат покупки предложения.
type ClaimOfferResult struct {
	// Offer - купленное предложение.
	Offer catalog.SpecialOffer

	// NewBalance - баланс после списания.
	NewBalance int

	// ToastID - идентификатор тоста об успехе.
	ToastID toast.ID

	// Events - опубликованные доменные события.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ClaimOfferHandler обрабатывает покупку предложения.
// Срок проверяется в момент покупки: истёкшее предложение недоступно
// независимо от баланса, граница строгая.
type ClaimOfferHandler struct {
	records   student.RecordRepository
	offers    *catalog.OfferBoard
	ledger    student.AuditLedger
	notifier  Notifier
	publisher shared.EventPublisher
	recorder  TransactionRecorder
	logger    *slog.Logger

	now   clock
	newID func() string
}

// NewClaimOfferHandler создаёт обработчик покупки предложений.
func NewClaimOfferHandler(
	records student.RecordRepository,
	offers *catalog.OfferBoard,
	ledger student.AuditLedger,
	notifier Notifier,
	publisher shared.EventPublisher,
	recorder TransactionRecorder,
	logger *slog.Logger,
) *ClaimOfferHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ClaimOfferHandler{
		records:   records,
		offers:    offers,
		ledger:    ledger,
		notifier:  notifier,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       defaultClock,
		newID:     uuid.NewString,
	}
}

// Handle выполняет покупку предложения.
func (h *ClaimOfferHandler) Handle(ctx context.Context, cmd ClaimOfferCommand) (*ClaimOfferResult, error) {
	started := h.now()

	// 1. Валидация команды
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	// 2. Поиск предложения
	offer, err := h.offers.Offer(cmd.OfferID)
	if err != nil {
		h.notifier.Enqueue(toast.SeverityError, "Покупка невозможна", "Предложение не найдено")
		h.recorder.RecordTransaction("claim_offer", "not_found", h.now().Sub(started).Seconds())
		return nil, err
	}

	// 3. Проверка срока до обращения к записи
	if !offer.Claimable(h.now()) {
		h.notifier.Enqueue(
			toast.SeverityError,
			"Предложение истекло",
			fmt.Sprintf("Срок действия %q вышел", offer.Title),
		)
		h.recorder.RecordTransaction("claim_offer", "expired", h.now().Sub(started).Seconds())
		return nil, fmt.Errorf("claim %s: %w", offer.ID, catalog.ErrOfferExpired)
	}

	// 4. Загрузка записи студента
	rec, err := h.records.Load(ctx)
	if err != nil {
		h.recorder.RecordTransaction("claim_offer", "no_record", h.now().Sub(started).Seconds())
		return nil, fmt.Errorf("load record: %w", err)
	}

	// 5. Проверка баланса по цене со скидкой
	if !rec.Aqcha.CanAfford(offer.DiscountedPrice) {
		shortfall := rec.Aqcha.Shortfall(offer.DiscountedPrice)
		h.notifier.Enqueue(
			toast.SeverityError,
			"Недостаточно средств",
			fmt.Sprintf("Не хватает %d aqcha для предложения %q", shortfall, offer.Title),
		)

		rejected := shared.NewPurchaseRejectedEvent(
			h.newID(), rec.ID, offer.ID, offer.DiscountedPrice, int(rec.Aqcha), "insufficient_funds",
		)
		h.publishEvent(rejected)
		h.recorder.RecordTransaction("claim_offer", "rejected", h.now().Sub(started).Seconds())

		return nil, fmt.Errorf("claim %s: %w", offer.ID, student.ErrInsufficientFunds)
	}

	// 6. Списание без записи в историю покупок: предложения - отдельный
	// путь наград и не участвуют в покупательских достижениях.
	if err := rec.Debit(offer.DiscountedPrice); err != nil {
		return nil, fmt.Errorf("debit offer price: %w", err)
	}

	// 7. Сохранение записи целиком
	if err := h.records.Persist(ctx, rec); err != nil {
		h.recorder.RecordTransaction("claim_offer", "persist_error", h.now().Sub(started).Seconds())
		return nil, fmt.Errorf("persist record: %w", err)
	}

	// 8. Журнал аудита, уведомление, события
	h.appendAudit(ctx, rec, offer.DiscountedPrice)

	toastID, _ := h.notifier.Enqueue(
		toast.SeveritySuccess,
		"Предложение куплено",
		fmt.Sprintf("%s со скидкой %d%%", offer.Title, offer.DiscountPercent()),
	)

	claimed := shared.NewOfferClaimedEvent(
		h.newID(), rec.ID, offer.ID, offer.DiscountedPrice, int(rec.Aqcha),
	)
	h.publishEvent(claimed)

	h.recorder.RecordTransaction("claim_offer", "success", h.now().Sub(started).Seconds())
	h.logger.Info("offer claimed",
		slog.String("offer_id", offer.ID),
		slog.Int("price", offer.DiscountedPrice),
		slog.Int("balance", int(rec.Aqcha)),
	)

	return &ClaimOfferResult{
		Offer:      offer,
		NewBalance: int(rec.Aqcha),
		ToastID:    toastID,
		Events:     []shared.Event{claimed},
	}, nil
}

func (h *ClaimOfferHandler) publishEvent(event shared.Event) {
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

func (h *ClaimOfferHandler) appendAudit(ctx context.Context, rec *student.Record, amount int) {
	if h.ledger == nil {
		return
	}

	entry := student.LedgerEntry{
		StudentID:  rec.ID,
		Kind:       "debit",
		Amount:     amount,
		Balance:    int(rec.Aqcha),
		Source:     SourceOffer,
		OccurredAt: h.now(),
	}
	if err := h.ledger.Append(ctx, entry); err != nil {
		h.logger.Warn("failed to append audit entry",
			slog.String("error", err.Error()),
		)
	}
}

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

// BuyProductCommand покупает один товар витрины.
type BuyProductCommand struct {
	// ProductID - идентификатор товара из каталога.
	ProductID string
}

// Validate проверяет корректность команды.
func (c BuyProductCommand) Validate() error {
	if c.ProductID == "" {
		return student.ErrEmptyProductID
	}
	return nil
}

// BuyProductResult содержит результат покупки.
type BuyProductResult struct {
	// Product - купленный товар.
	Product catalog.Product

	// NewBalance - баланс после списания и кэшбэка.
	NewBalance int

	// LeveledUp - вырос ли уровень от бонусного опыта.
	LeveledUp bool

	// ToastID - идентификатор тоста об успехе.
	ToastID toast.ID

	// Events - опубликованные доменные события.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// BuyProductHandler обрабатывает покупку одного товара.
// Отказ целиком: при нехватке средств запись студента не меняется,
// а студенту показывается ровно один тост с недостающей суммой.
type BuyProductHandler struct {
	records   student.RecordRepository
	catalog   *catalog.Catalog
	ledger    student.AuditLedger
	notifier  Notifier
	publisher shared.EventPublisher
	recorder  TransactionRecorder
	logger    *slog.Logger

	now   clock
	newID func() string
}

// NewBuyProductHandler создаёт обработчик покупки.
// Журнал аудита и метрики необязательны (nil допустим).
func NewBuyProductHandler(
	records student.RecordRepository,
	cat *catalog.Catalog,
	ledger student.AuditLedger,
	notifier Notifier,
	publisher shared.EventPublisher,
	recorder TransactionRecorder,
	logger *slog.Logger,
) *BuyProductHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &BuyProductHandler{
		records:   records,
		catalog:   cat,
		ledger:    ledger,
		notifier:  notifier,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       defaultClock,
		newID:     uuid.NewString,
	}
}

// Handle выполняет покупку.
func (h *BuyProductHandler) Handle(ctx context.Context, cmd BuyProductCommand) (*BuyProductResult, error) {
	started := h.now()

	// 1. Валидация команды
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	// 2. Поиск товара в каталоге
	product, err := h.catalog.Product(cmd.ProductID)
	if err != nil {
		h.notifier.Enqueue(toast.SeverityError, "Покупка невозможна", "Товар не найден")
		h.recorder.RecordTransaction("buy", "not_found", h.now().Sub(started).Seconds())
		return nil, err
	}

	// 3. Загрузка записи студента
	rec, err := h.records.Load(ctx)
	if err != nil {
		// Отсутствие записи показывается на уровне представления,
		// а не отдельным тостом на каждое действие.
		h.recorder.RecordTransaction("buy", "no_record", h.now().Sub(started).Seconds())
		return nil, fmt.Errorf("load record: %w", err)
	}

	// 4. Проверка баланса до любых изменений
	if !rec.Aqcha.CanAfford(product.Price) {
		shortfall := rec.Aqcha.Shortfall(product.Price)
		h.notifier.Enqueue(
			toast.SeverityError,
			"Недостаточно средств",
			fmt.Sprintf("Не хватает %d aqcha для покупки %q", shortfall, product.Name),
		)

		rejected := shared.NewPurchaseRejectedEvent(
			h.newID(), rec.ID, product.ID, product.Price, int(rec.Aqcha), "insufficient_funds",
		)
		h.publishEvent(rejected)
		h.recorder.RecordTransaction("buy", "rejected", h.now().Sub(started).Seconds())

		return nil, fmt.Errorf("buy %s: %w", product.ID, student.ErrInsufficientFunds)
	}

	// 5. Списание и бонусы
	if err := rec.RecordPurchase(product.ID, product.Price); err != nil {
		return nil, fmt.Errorf("record purchase: %w", err)
	}

	leveledUp := false
	if product.Bonuses.Experience > 0 {
		leveledUp, _ = rec.AddExperience(product.Bonuses.Experience)
	}
	if product.Bonuses.Streak > 0 {
		_ = rec.ExtendStreak(product.Bonuses.Streak)
	}
	if product.Bonuses.Cashback > 0 {
		_ = rec.Credit(product.Bonuses.Cashback)
	}

	// 6. Сохранение записи целиком
	if err := h.records.Persist(ctx, rec); err != nil {
		h.recorder.RecordTransaction("buy", "persist_error", h.now().Sub(started).Seconds())
		return nil, fmt.Errorf("persist record: %w", err)
	}

	// 7. Журнал аудита (не блокирует покупку)
	h.appendAudit(ctx, rec, "debit", product.Price, SourceBuy)
	if product.Bonuses.Cashback > 0 {
		h.appendAudit(ctx, rec, "credit", product.Bonuses.Cashback, SourceBuy)
	}

	// 8. Уведомление и события
	toastID, _ := h.notifier.Enqueue(
		toast.SeveritySuccess,
		"Покупка успешна",
		fmt.Sprintf("%s за %d aqcha", product.Name, product.Price),
	)

	completed := shared.NewPurchaseCompletedEvent(
		h.newID(), rec.ID, product.ID, product.Price, int(rec.Aqcha), SourceBuy,
	)
	h.publishEvent(completed)

	h.recorder.RecordTransaction("buy", "success", h.now().Sub(started).Seconds())
	h.logger.Info("product purchased",
		slog.String("product_id", product.ID),
		slog.Int("price", product.Price),
		slog.Int("balance", int(rec.Aqcha)),
	)

	return &BuyProductResult{
		Product:    product,
		NewBalance: int(rec.Aqcha),
		LeveledUp:  leveledUp,
		ToastID:    toastID,
		Events:     []shared.Event{completed},
	}, nil
}

// publishEvent публикует событие, не прерывая команду при ошибке шины.
func (h *BuyProductHandler) publishEvent(event shared.Event) {
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

// appendAudit добавляет строку в журнал аудита, если он подключён.
func (h *BuyProductHandler) appendAudit(ctx context.Context, rec *student.Record, kind string, amount int, source string) {
	if h.ledger == nil {
		return
	}

	entry := student.LedgerEntry{
		StudentID:  rec.ID,
		Kind:       kind,
		Amount:     amount,
		Balance:    int(rec.Aqcha),
		Source:     source,
		OccurredAt: h.now(),
	}
	if err := h.ledger.Append(ctx, entry); err != nil {
		h.logger.Warn("failed to append audit entry",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}

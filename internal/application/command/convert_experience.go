package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/shared"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/toast"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ConvertExperienceCommand конвертирует накопленный опыт журнала в валюту.
// Команда без параметров: конвертируется весь доступный опыт.
type ConvertExperienceCommand struct{}

// ConvertExperienceResult содержит результат конвертации.
type ConvertExperienceResult struct {
	// ConvertedXP - сколько опыта журнала было накоплено до конвертации.
	ConvertedXP int

	// Credited - сколько валюты зачислено.
	Credited int

	// NewBalance - баланс после зачисления.
	NewBalance int

	// ToastID - идентификатор тоста об успехе.
	ToastID toast.ID

	// Events - опубликованные доменные события.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ConvertExperienceHandler обрабатывает конвертацию опыта.
// Конвертация разрушающая: журнал обнуляется целиком, остаток ниже курса
// сгорает. Ключи месяцев при этом сохраняются.
type ConvertExperienceHandler struct {
	records   student.RecordRepository
	ledger    student.AuditLedger
	notifier  Notifier
	publisher shared.EventPublisher
	recorder  TransactionRecorder
	logger    *slog.Logger

	now   clock
	newID func() string
}

// NewConvertExperienceHandler создаёт обработчик конвертации.
func NewConvertExperienceHandler(
	records student.RecordRepository,
	ledger student.AuditLedger,
	notifier Notifier,
	publisher shared.EventPublisher,
	recorder TransactionRecorder,
	logger *slog.Logger,
) *ConvertExperienceHandler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ConvertExperienceHandler{
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

// Handle выполняет конвертацию.
func (h *ConvertExperienceHandler) Handle(ctx context.Context, _ ConvertExperienceCommand) (*ConvertExperienceResult, error) {
	started := h.now()

	// 1. Загрузка записи студента
	rec, err := h.records.Load(ctx)
	if err != nil {
		h.recorder.RecordTransaction("convert", "no_record", h.now().Sub(started).Seconds())
		return nil, fmt.Errorf("load record: %w", err)
	}

	// 2. Конвертация с фиксацией исходного опыта
	convertedXP := rec.LedgerExperience()
	credited, err := rec.ConvertExperience()
	if err != nil {
		h.notifier.Enqueue(
			toast.SeverityError,
			"Конвертация невозможна",
			fmt.Sprintf("Нужно минимум %d XP, накоплено %d", student.ConversionRate, convertedXP),
		)
		h.recorder.RecordTransaction("convert", "rejected", h.now().Sub(started).Seconds())
		return nil, fmt.Errorf("convert experience: %w", err)
	}

	// 3. Сохранение записи целиком
	if err := h.records.Persist(ctx, rec); err != nil {
		h.recorder.RecordTransaction("convert", "persist_error", h.now().Sub(started).Seconds())
		return nil, fmt.Errorf("persist record: %w", err)
	}

	// 4. Журнал аудита, уведомление, события
	h.appendAudit(ctx, rec, credited)

	toastID, _ := h.notifier.Enqueue(
		toast.SeveritySuccess,
		"Опыт конвертирован",
		fmt.Sprintf("%d XP обменяно на %d aqcha", convertedXP, credited),
	)

	converted := shared.NewExperienceConvertedEvent(
		h.newID(), rec.ID, convertedXP, credited, int(rec.Aqcha),
	)
	h.publishEvent(converted)

	h.recorder.RecordTransaction("convert", "success", h.now().Sub(started).Seconds())
	h.logger.Info("experience converted",
		slog.Int("converted_xp", convertedXP),
		slog.Int("credited", credited),
		slog.Int("balance", int(rec.Aqcha)),
	)

	return &ConvertExperienceResult{
		ConvertedXP: convertedXP,
		Credited:    credited,
		NewBalance:  int(rec.Aqcha),
		ToastID:     toastID,
		Events:      []shared.Event{converted},
	}, nil
}

func (h *ConvertExperienceHandler) publishEvent(event shared.Event) {
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

func (h *ConvertExperienceHandler) appendAudit(ctx context.Context, rec *student.Record, credited int) {
	if h.ledger == nil {
		return
	}

	entry := student.LedgerEntry{
		StudentID:  rec.ID,
		Kind:       "credit",
		Amount:     credited,
		Balance:    int(rec.Aqcha),
		Source:     SourceConversion,
		OccurredAt: h.now(),
	}
	if err := h.ledger.Append(ctx, entry); err != nil {
		h.logger.Warn("failed to append audit entry",
			slog.String("error", err.Error()),
		)
	}
}

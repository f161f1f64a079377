package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/shared"
)

// sweptEvent - системное событие об итогах ежедневного обхода предложений.
type sweptEvent struct {
	shared.BaseEvent
	ExpiredIDs []string
}

// Payload implements shared.Event.
func (e sweptEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"expired_ids": e.ExpiredIDs}
}

// OfferSweepJob раз в сутки перечисляет истёкшие предложения.
// Истечение не удаляет предложение с доски, обход только фиксирует
// итог дня в логе и событии для внешних потребителей.
type OfferSweepJob struct {
	offers    *catalog.OfferBoard
	publisher shared.EventPublisher
	logger    *slog.Logger

	now func() time.Time
}

// NewOfferSweepJob создаёт задачу обхода предложений.
func NewOfferSweepJob(offers *catalog.OfferBoard, publisher shared.EventPublisher, logger *slog.Logger) *OfferSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &OfferSweepJob{
		offers:    offers,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Name возвращает имя задачи.
func (j *OfferSweepJob) Name() string {
	return "offer_sweep"
}

// Description возвращает краткое описание для статуса планировщика.
func (j *OfferSweepJob) Description() string {
	return "ежедневный обход истёкших предложений"
}

// Run выполняет один обход.
func (j *OfferSweepJob) Run(ctx context.Context) error {
	now := j.now()
	expired := j.offers.Expired(now)

	ids := make([]string, 0, len(expired))
	for _, o := range expired {
		ids = append(ids, o.ID)
	}

	j.logger.Info("offer sweep completed",
		slog.Int("expired", len(ids)),
		slog.Int("active", len(j.offers.Active(now))),
	)

	if j.publisher != nil && len(ids) > 0 {
		event := sweptEvent{
			BaseEvent:  shared.NewBaseEvent(uuid.NewString(), shared.EventOffersSwept, "catalog"),
			ExpiredIDs: ids,
		}
		if err := j.publisher.Publish(event); err != nil {
			j.logger.Warn("failed to publish sweep event", slog.String("error", err.Error()))
		}
	}
	return nil
}

// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"log/slog"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// EVENT LOGGER
// Подписывается на все события и пишет их в структурированный лог.
// Это единственное место, где видна полная хронология сессии:
// покупки, отказы, конвертации, достижения, смены темы.
// ═══════════════════════════════════════════════════════════════════════════

// EventLogger логирует каждое доменное событие.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger создаёт обработчик логирования событий.
func NewEventLogger(logger *slog.Logger) *EventLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLogger{logger: logger}
}

// Attach подписывает обработчик на все события шины.
func (l *EventLogger) Attach(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(l.Handle)
}

// Handle пишет событие в лог. Никогда не возвращает ошибку:
// логирование не должно прерывать доставку другим подписчикам.
func (l *EventLogger) Handle(event shared.Event) error {
	l.logger.Debug("domain event",
		slog.String("type", string(event.EventType())),
		slog.String("aggregate_id", event.AggregateID()),
		slog.Time("occurred_at", event.OccurredAt()),
		slog.Any("payload", event.Payload()),
	)
	return nil
}

package eventhandler

import (
	"fmt"
	"log/slog"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/shared"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/toast"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON THEME CHANGED HANDLER
// Реагирует на расхождение темы, замеченное фоновым опросом: показывает
// короткий информационный тост, чтобы смена не выглядела как сбой.
// ═══════════════════════════════════════════════════════════════════════════

// Notifier enqueues toasts for the rendering layer.
type Notifier interface {
	Enqueue(severity toast.Severity, title, message string) (toast.ID, error)
}

// ThemeCounter counts reconciled theme changes.
type ThemeCounter interface {
	Inc()
}

// OnThemeChangedHandler обрабатывает событие смены темы.
type OnThemeChangedHandler struct {
	notifier Notifier
	counter  ThemeCounter
	logger   *slog.Logger
}

// NewOnThemeChangedHandler создаёт обработчик.
// Счётчик необязателен (nil допустим).
func NewOnThemeChangedHandler(notifier Notifier, counter ThemeCounter, logger *slog.Logger) *OnThemeChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnThemeChangedHandler{notifier: notifier, counter: counter, logger: logger}
}

// Attach подписывает обработчик на события смены темы.
func (h *OnThemeChangedHandler) Attach(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventThemeChanged, h.Handle)
}

// Handle показывает тост о новой теме.
func (h *OnThemeChangedHandler) Handle(event shared.Event) error {
	newTheme, _ := event.Payload()["new_theme"].(string)
	if newTheme == "" {
		return nil
	}

	if h.counter != nil {
		h.counter.Inc()
	}

	title := "Тема переключена"
	message := fmt.Sprintf("Портал переключился на тему %q", newTheme)
	if _, err := h.notifier.Enqueue(toast.SeverityInfo, title, message); err != nil {
		h.logger.Warn("failed to enqueue theme toast", slog.String("error", err.Error()))
	}
	return nil
}

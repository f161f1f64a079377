// Package jobs содержит фоновые задачи портала.
package jobs

import (
	"context"
	"log/slog"

	"github.com/bilim-hub/bilim-reward-hub/internal/application/viewstate"
)

// ThemeSyncJob сверяет кэш темы и класса устройства с общим хранилищем.
// Запускается раз в секунду: внешний слой отображения пишет свои значения
// напрямую, и опрос - единственный способ заметить расхождение.
type ThemeSyncJob struct {
	tracker *viewstate.Tracker
	logger  *slog.Logger
}

// NewThemeSyncJob создаёт задачу сверки.
func NewThemeSyncJob(tracker *viewstate.Tracker, logger *slog.Logger) *ThemeSyncJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThemeSyncJob{tracker: tracker, logger: logger}
}

// Name возвращает имя задачи.
func (j *ThemeSyncJob) Name() string {
	return "theme_sync"
}

// Description возвращает краткое описание для статуса планировщика.
func (j *ThemeSyncJob) Description() string {
	return "сверка темы и класса устройства с общим хранилищем"
}

// Run выполняет одну сверку.
func (j *ThemeSyncJob) Run(ctx context.Context) error {
	_, err := j.tracker.Reconcile(ctx)
	return err
}

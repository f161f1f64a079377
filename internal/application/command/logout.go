package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
)

// LogoutHandler удаляет запись студента из хранилища.
// После выхода экономика отключается до следующего входа.
type LogoutHandler struct {
	records student.RecordRepository
	logger  *slog.Logger
}

// NewLogoutHandler создаёт обработчик выхода.
func NewLogoutHandler(records student.RecordRepository, logger *slog.Logger) *LogoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogoutHandler{records: records, logger: logger}
}

// Handle удаляет запись.
func (h *LogoutHandler) Handle(ctx context.Context) error {
	if err := h.records.Clear(ctx); err != nil {
		return fmt.Errorf("clear record: %w", err)
	}

	h.logger.Info("student logged out, record cleared")
	return nil
}

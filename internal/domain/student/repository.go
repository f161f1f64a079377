package student

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACTS
// Контракты хранилища. Реализации живут в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository - хранилище единственной записи текущего студента.
// Запись читается и перезаписывается целиком.
type RecordRepository interface {
	// Load загружает запись. Возвращает ErrRecordNotFound, если ключ
	// отсутствует или сохранённые данные не разбираются.
	Load(ctx context.Context) (*Record, error)

	// Persist сохраняет запись целиком. Сравнивает Version с версией
	// в хранилище и возвращает ErrStaleRecord при несовпадении.
	// При успехе метка версии записи увеличивается.
	Persist(ctx context.Context, rec *Record) error

	// Clear удаляет запись (выход из аккаунта отключает экономику).
	Clear(ctx context.Context) error
}

// ThemeStore - доступ к ключу темы, который пишет внешний слой отображения.
type ThemeStore interface {
	// Theme возвращает текущее значение темы ("dark" или "light").
	// Пустая строка означает, что ключ не выставлен.
	Theme(ctx context.Context) (string, error)

	// SetTheme записывает значение темы.
	SetTheme(ctx context.Context, theme string) error
}

// LedgerEntry - строка журнала аудита: одно списание или зачисление.
type LedgerEntry struct {
	ID        string
	StudentID string
	Kind      string // "debit" или "credit"
	Amount    int
	Balance   int // баланс после операции
	Source    string
	OccurredAt time.Time
}

// AuditLedger - журнал аудита всех движений валюты.
type AuditLedger interface {
	// Append добавляет строку в журнал.
	Append(ctx context.Context, entry LedgerEntry) error

	// History возвращает последние записи студента, новые первыми.
	History(ctx context.Context, studentID string, limit int) ([]LedgerEntry, error)
}

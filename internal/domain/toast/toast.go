// Package toast содержит доменную модель эфемерных уведомлений.
// Уведомления живут только в памяти сессии и никогда не сохраняются.
package toast

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Severity представляет тип уведомления.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IsValid проверяет, что тип уведомления известен.
func (s Severity) IsValid() bool {
	switch s {
	case SeveritySuccess, SeverityError, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// DefaultDuration - время жизни уведомления по умолчанию.
const DefaultDuration = 4 * time.Second

// ID - идентификатор уведомления. Строго возрастает в рамках сессии.
type ID int64

// Toast - эфемерное уведомление.
type Toast struct {
	// ID - уникальный в рамках сессии идентификатор.
	ID ID

	// Severity - тип уведомления.
	Severity Severity

	// Title - заголовок.
	Title string

	// Message - текст уведомления.
	Message string

	// Duration - время до автоматического скрытия.
	Duration time.Duration

	// CreatedAt - момент постановки в очередь.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidSeverity - неизвестный тип уведомления.
	ErrInvalidSeverity = errors.New("invalid toast severity")

	// ErrEmptyTitle - уведомление без заголовка.
	ErrEmptyTitle = errors.New("toast title is required")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// New создаёт уведомление с временем жизни по умолчанию.
// Идентификатор назначает очередь при постановке.
func New(severity Severity, title, message string) (Toast, error) {
	if !severity.IsValid() {
		return Toast{}, fmt.Errorf("%w: %q", ErrInvalidSeverity, severity)
	}
	if title == "" {
		return Toast{}, ErrEmptyTitle
	}

	return Toast{
		Severity: severity,
		Title:    title,
		Message:  message,
		Duration: DefaultDuration,
	}, nil
}

// ExpiresAt возвращает момент автоматического скрытия.
func (t Toast) ExpiresAt() time.Time {
	return t.CreatedAt.Add(t.Duration)
}

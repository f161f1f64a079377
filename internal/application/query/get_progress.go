package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/achievement"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Собирает страницу прогресса: уровень, серия, помесячный журнал опыта,
// конвертируемая валюта, достижения и последние движения по журналу аудита.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementSource отдаёт текущее состояние достижений.
type AchievementSource interface {
	Achievements() []achievement.Achievement
}

// GetProgressQuery содержит параметры запроса прогресса.
type GetProgressQuery struct {
	// HistoryLimit - сколько последних движений показать (по умолчанию 10).
	HistoryLimit int
}

// Validate нормализует параметры.
func (q *GetProgressQuery) Validate() error {
	if q.HistoryLimit <= 0 {
		q.HistoryLimit = 10
	}
	if q.HistoryLimit > 100 {
		q.HistoryLimit = 100
	}
	return nil
}

// MonthDTO - журнал одного месяца.
type MonthDTO struct {
	// Key - ключ месяца "YYYY-MM".
	Key string `json:"key"`

	// Label - человекочитаемое название ("Сентябрь 2024").
	Label string `json:"label"`

	// Attendance - очки за посещаемость.
	Attendance int `json:"davomat"`

	// Homework - очки за домашние задания.
	Homework int `json:"uy_vazifa"`

	// Tasks - очки за задачи.
	Tasks int `json:"tasks"`

	// Penalty - штрафные очки.
	Penalty int `json:"jarima"`

	// Total - чистый опыт месяца.
	Total int `json:"total"`
}

// AchievementDTO - достижение для слоя представления.
type AchievementDTO struct {
	// ID - порядковый идентификатор.
	ID int `json:"id"`

	// Code - машинный код достижения.
	Code string `json:"code"`

	// Title - заголовок.
	Title string `json:"title"`

	// Description - описание условия.
	Description string `json:"description"`

	// Reward - награда в aqcha.
	Reward int `json:"reward"`

	// Unlocked - открыто ли.
	Unlocked bool `json:"unlocked"`

	// UnlockedAt - момент открытия, если открыто.
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// LedgerEntryDTO - строка журнала аудита.
type LedgerEntryDTO struct {
	// Kind - "debit" или "credit".
	Kind string `json:"kind"`

	// Amount - сумма операции.
	Amount int `json:"amount"`

	// Balance - баланс после операции.
	Balance int `json:"balance"`

	// Source - источник операции.
	Source string `json:"source"`

	// OccurredAt - момент операции.
	OccurredAt time.Time `json:"occurred_at"`
}

// GetProgressResult содержит собранную страницу прогресса.
type GetProgressResult struct {
	// StudentID - идентификатор студента.
	StudentID string `json:"student_id"`

	// Name - отображаемое имя.
	Name string `json:"name"`

	// Balance - текущий баланс.
	Balance int `json:"balance"`

	// Experience - очки опыта.
	Experience int `json:"experience"`

	// Level - текущий уровень.
	Level int `json:"level"`

	// LevelProgress - прогресс внутри уровня (0-99).
	LevelProgress int `json:"level_progress"`

	// Streak - серия активных дней.
	Streak int `json:"streak"`

	// TotalSpent - потрачено за всё время.
	TotalSpent int `json:"total_spent"`

	// Months - помесячный журнал, отсортирован по ключу.
	Months []MonthDTO `json:"months"`

	// LedgerExperience - суммарный конвертируемый опыт журнала.
	LedgerExperience int `json:"ledger_experience"`

	// ConvertibleAqcha - сколько валюты даст конвертация сейчас.
	ConvertibleAqcha int `json:"convertible_aqcha"`

	// TotalPenalty - сумма штрафов по всем месяцам.
	TotalPenalty int `json:"total_penalty"`

	// Achievements - достижения в порядке идентификаторов.
	Achievements []AchievementDTO `json:"achievements"`

	// History - последние движения валюты, новые первыми.
	History []LedgerEntryDTO `json:"history"`

	// GeneratedAt - время сборки.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetProgressHandler собирает страницу прогресса.
type GetProgressHandler struct {
	records      student.RecordRepository
	ledger       student.AuditLedger
	achievements AchievementSource

	now func() time.Time
}

// NewGetProgressHandler создаёт обработчик прогресса.
// Журнал аудита и источник достижений необязательны (nil допустим).
func NewGetProgressHandler(
	records student.RecordRepository,
	ledger student.AuditLedger,
	achievements AchievementSource,
) *GetProgressHandler {
	return &GetProgressHandler{
		records:      records,
		ledger:       ledger,
		achievements: achievements,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle выполняет запрос.
func (h *GetProgressHandler) Handle(ctx context.Context, query GetProgressQuery) (*GetProgressResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	rec, err := h.records.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}

	result := &GetProgressResult{
		StudentID:        rec.ID,
		Name:             rec.Name,
		Balance:          int(rec.Aqcha),
		Experience:       int(rec.Experience),
		Level:            int(rec.Level()),
		LevelProgress:    rec.Progress(),
		Streak:           rec.Streak,
		TotalSpent:       rec.TotalSpent,
		Months:           buildMonths(rec),
		LedgerExperience: rec.LedgerExperience(),
		ConvertibleAqcha: rec.ConvertibleAqcha(),
		TotalPenalty:     rec.TotalPenalty(),
		GeneratedAt:      h.now(),
	}

	if h.achievements != nil {
		for _, a := range h.achievements.Achievements() {
			dto := AchievementDTO{
				ID:          a.ID,
				Code:        a.Code,
				Title:       a.Title,
				Description: a.Description,
				Reward:      a.Reward,
				Unlocked:    a.Unlocked,
			}
			if a.Unlocked {
				at := a.UnlockedAt
				dto.UnlockedAt = &at
			}
			result.Achievements = append(result.Achievements, dto)
		}
	}

	if h.ledger != nil {
		entries, err := h.ledger.History(ctx, rec.ID, query.HistoryLimit)
		if err == nil {
			for _, e := range entries {
				result.History = append(result.History, LedgerEntryDTO{
					Kind:       e.Kind,
					Amount:     e.Amount,
					Balance:    e.Balance,
					Source:     e.Source,
					OccurredAt: e.OccurredAt,
				})
			}
		}
	}

	return result, nil
}

// buildMonths превращает карту месяцев в срез, отсортированный по ключу.
// Ключи формата "YYYY-MM" сортируются лексикографически как хронологически.
func buildMonths(rec *student.Record) []MonthDTO {
	keys := make([]string, 0, len(rec.Months))
	for k := range rec.Months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	months := make([]MonthDTO, 0, len(keys))
	for _, k := range keys {
		m := rec.Months[k]
		months = append(months, MonthDTO{
			Key:        k,
			Label:      timeutil.MonthLabelRu(k),
			Attendance: m.Attendance,
			Homework:   m.Homework,
			Tasks:      m.Tasks,
			Penalty:    m.Penalty,
			Total:      m.Total(),
		})
	}
	return months
}

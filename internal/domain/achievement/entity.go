// Package achievement содержит доменную модель достижений и правила
// их разблокировки. Достижение разблокируется ровно один раз.
package achievement

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CODES & DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// Коды встроенных достижений.
const (
	// CodeFirstPurchase - первая покупка в истории.
	CodeFirstPurchase = "first_purchase"

	// CodeCollector - куплено не менее пяти различных товаров.
	CodeCollector = "collector"

	// CodePremiumBuyer - куплен любой товар премиальной категории.
	CodePremiumBuyer = "premium_buyer"
)

// CollectorThreshold - сколько различных товаров нужно для "Коллекционера".
const CollectorThreshold = 5

var (
	// ErrAlreadyUnlocked - достижение уже разблокировано.
	ErrAlreadyUnlocked = errors.New("achievement already unlocked")

	// ErrAchievementNotFound - достижение не найдено.
	ErrAchievementNotFound = errors.New("achievement not found")

	// ErrInvalidAchievement - достижение не проходит валидацию.
	ErrInvalidAchievement = errors.New("invalid achievement")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Achievement - достижение студента. Единственные изменяемые поля -
// Unlocked и UnlockedAt, и меняются они ровно один раз.
type Achievement struct {
	// ID - порядковый идентификатор. Определяет порядок проверки.
	ID int

	// Code - машинный код достижения.
	Code string

	// Title - отображаемый заголовок.
	Title string

	// Description - описание условия.
	Description string

	// Reward - награда в aqcha, зачисляемая при разблокировке.
	Reward int

	// Unlocked - флаг разблокировки. Назад не переключается.
	Unlocked bool

	// UnlockedAt - момент разблокировки.
	UnlockedAt time.Time
}

// Unlock разблокирует достижение. Повторный вызов возвращает ошибку,
// не меняя метку времени.
func (a *Achievement) Unlock(now time.Time) error {
	if a.Unlocked {
		return fmt.Errorf("%w: %s", ErrAlreadyUnlocked, a.Code)
	}
	a.Unlocked = true
	a.UnlockedAt = now
	return nil
}

// Validate проверяет инварианты достижения.
func (a Achievement) Validate() error {
	if a.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidAchievement)
	}
	if a.Code == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidAchievement)
	}
	if a.Reward < 0 {
		return fmt.Errorf("%w: %s: negative reward", ErrInvalidAchievement, a.Code)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CONDITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Condition - предикат разблокировки. Чистая функция от записи и каталога.
type Condition func(rec *student.Record, cat *catalog.Catalog) bool

// conditions - предикаты встроенных достижений по коду.
var conditions = map[string]Condition{
	CodeFirstPurchase: func(rec *student.Record, _ *catalog.Catalog) bool {
		return len(rec.Purchases) >= 1
	},

	CodeCollector: func(rec *student.Record, _ *catalog.Catalog) bool {
		return rec.DistinctPurchases() >= CollectorThreshold
	},

	CodePremiumBuyer: func(rec *student.Record, cat *catalog.Catalog) bool {
		for _, id := range rec.Purchases {
			p, err := cat.Product(id)
			if err != nil {
				// Товар мог быть удалён из каталога, покупка остаётся в истории.
				continue
			}
			if p.Category == catalog.CategoryPremium {
				return true
			}
		}
		return false
	},
}

// ══════════════════════════════════════════════════════════════════════════════
// SET & EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// Set - набор достижений сессии, упорядоченный по ID.
type Set struct {
	items []*Achievement
}

// Defaults возвращает встроенный набор достижений портала.
func Defaults() *Set {
	set, _ := NewSet([]Achievement{
		{ID: 1, Code: CodeFirstPurchase, Title: "Первая покупка", Description: "Купи любой товар", Reward: 50},
		{ID: 2, Code: CodeCollector, Title: "Коллекционер", Description: "Купи пять разных товаров", Reward: 100},
		{ID: 3, Code: CodePremiumBuyer, Title: "Премиум-покупатель", Description: "Купи премиальный товар", Reward: 200},
	})
	return set
}

// NewSet создаёт набор достижений с валидацией и сортировкой по ID.
func NewSet(items []Achievement) (*Set, error) {
	set := &Set{items: make([]*Achievement, 0, len(items))}
	seen := make(map[int]struct{}, len(items))
	for _, a := range items {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidAchievement, a.ID)
		}
		seen[a.ID] = struct{}{}

		item := a
		set.items = append(set.items, &item)
	}

	sort.Slice(set.items, func(i, j int) bool {
		return set.items[i].ID < set.items[j].ID
	})
	return set, nil
}

// All возвращает достижения в порядке возрастания ID.
func (s *Set) All() []*Achievement {
	return append([]*Achievement(nil), s.items...)
}

// ByCode возвращает достижение по коду.
func (s *Set) ByCode(code string) (*Achievement, error) {
	for _, a := range s.items {
		if a.Code == code {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrAchievementNotFound, code)
}

// UnlockedCount возвращает количество разблокированных достижений.
func (s *Set) UnlockedCount() int {
	count := 0
	for _, a := range s.items {
		if a.Unlocked {
			count++
		}
	}
	return count
}

// Evaluate проверяет условия всех ещё не разблокированных достижений
// в порядке возрастания ID и разблокирует выполненные.
// Возвращает разблокированные на этом проходе достижения.
// Уже разблокированные повторно не проверяются и не награждаются.
func (s *Set) Evaluate(rec *student.Record, cat *catalog.Catalog, now time.Time) []*Achievement {
	unlocked := make([]*Achievement, 0)
	for _, a := range s.items {
		if a.Unlocked {
			continue
		}
		cond, ok := conditions[a.Code]
		if !ok {
			continue
		}
		if !cond(rec, cat) {
			continue
		}
		if err := a.Unlock(now); err != nil {
			continue
		}
		unlocked = append(unlocked, a)
	}
	return unlocked
}

// Package student содержит доменную модель записи студента учебного портала.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package student

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Aqcha представляет внутреннюю валюту портала.
type Aqcha int

// IsValid проверяет, что баланс неотрицательный.
func (a Aqcha) IsValid() bool {
	return a >= 0
}

// CanAfford проверяет, хватает ли баланса на указанную цену.
func (a Aqcha) CanAfford(price int) bool {
	return int(a) >= price
}

// Shortfall возвращает, сколько не хватает до указанной цены.
// Ноль, если баланса достаточно.
func (a Aqcha) Shortfall(price int) int {
	if a.CanAfford(price) {
		return 0
	}
	return price - int(a)
}

// Experience представляет очки опыта студента.
type Experience int

// IsValid проверяет, что опыт неотрицательный.
func (x Experience) IsValid() bool {
	return x >= 0
}

// Level представляет уровень студента, вычисляемый из опыта.
type Level int

// ExperiencePerLevel - сколько опыта нужно на один уровень.
const ExperiencePerLevel = 100

// CalculateLevel вычисляет уровень на основе опыта.
// Формула: каждые 100 XP = 1 уровень, счёт с первого уровня.
func CalculateLevel(xp Experience) Level {
	if xp < 0 {
		return 1
	}
	return Level(int(xp)/ExperiencePerLevel + 1)
}

// LevelProgress возвращает прогресс внутри текущего уровня (0-99).
func LevelProgress(xp Experience) int {
	if xp < 0 {
		return 0
	}
	return int(xp) % ExperiencePerLevel
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record - центральная сущность системы: состояние студента в экономике наград.
// Запись целиком сериализуется в общее key-value хранилище и целиком
// перезаписывается при каждом успешном изменении.
type Record struct {
	// ID - уникальный идентификатор студента.
	ID string

	// Name - отображаемое имя.
	Name string

	// Username - логин студента на портале.
	Username string

	// Aqcha - текущий баланс валюты. Никогда не уходит в минус.
	Aqcha Aqcha

	// Experience - очки опыта, определяющие уровень.
	Experience Experience

	// Streak - текущая серия активных дней.
	Streak int

	// Purchases - идентификаторы купленных товаров в порядке покупки.
	// Повторные покупки допустимы, дубликаты сохраняются.
	Purchases []string

	// TotalSpent - сумма всех списаний за всё время. Только растёт.
	TotalSpent int

	// Months - помесячный журнал активности (ключ "YYYY-MM").
	Months map[string]MonthlyEntry

	// SchemaVersion - версия схемы сохранённой записи.
	SchemaVersion int

	// Version - монотонная метка для оптимистической блокировки.
	// Хранилище отклоняет запись с устаревшей меткой.
	Version int64

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInsufficientFunds - на балансе не хватает валюты.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientExperience - накопленного опыта не хватает для конвертации.
	ErrInsufficientExperience = errors.New("insufficient experience for conversion")

	// ErrInvalidAmount - сумма операции должна быть положительной.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidName - невалидное имя студента.
	ErrInvalidName = errors.New("invalid name: must be 1-100 chars")

	// ErrEmptyProductID - покупка без идентификатора товара.
	ErrEmptyProductID = errors.New("product id is required")

	// ErrRecordNotFound - запись студента не найдена в хранилище.
	ErrRecordNotFound = errors.New("student record not found")

	// ErrMalformedRecord - сохранённая запись не разбирается.
	ErrMalformedRecord = errors.New("persisted record is malformed")

	// ErrStaleRecord - версия записи устарела относительно хранилища.
	ErrStaleRecord = errors.New("record version is stale")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewRecordParams содержит параметры для создания новой записи.
type NewRecordParams struct {
	ID             string
	Name           string
	Username       string
	InitialBalance int
}

// NewRecord создаёт новую запись студента с валидацией полей.
func NewRecord(params NewRecordParams) (*Record, error) {
	if params.ID == "" {
		return nil, errors.New("record id is required")
	}

	if len(params.Name) == 0 || len(params.Name) > 100 {
		return nil, ErrInvalidName
	}

	if params.InitialBalance < 0 {
		return nil, ErrInvalidAmount
	}

	return &Record{
		ID:            params.ID,
		Name:          params.Name,
		Username:      params.Username,
		Aqcha:         Aqcha(params.InitialBalance),
		Experience:    0,
		Streak:        0,
		Purchases:     make([]string, 0),
		TotalSpent:    0,
		Months:        make(map[string]MonthlyEntry),
		SchemaVersion: CurrentSchemaVersion,
		Version:       0,
		UpdatedAt:     time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// Level возвращает текущий уровень студента.
func (r *Record) Level() Level {
	return CalculateLevel(r.Experience)
}

// Progress возвращает прогресс внутри текущего уровня (0-99).
func (r *Record) Progress() int {
	return LevelProgress(r.Experience)
}

// Debit списывает сумму с баланса.
// Отказ целиком: при нехватке средств баланс не меняется.
func (r *Record) Debit(amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !r.Aqcha.CanAfford(amount) {
		return ErrInsufficientFunds
	}

	r.Aqcha -= Aqcha(amount)
	r.TotalSpent += amount
	r.touch()
	return nil
}

// Credit зачисляет сумму на баланс.
func (r *Record) Credit(amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	r.Aqcha += Aqcha(amount)
	r.touch()
	return nil
}

// RecordPurchase списывает цену и добавляет товар в историю покупок.
// При нехватке средств запись не меняется вовсе.
func (r *Record) RecordPurchase(productID string, price int) error {
	if productID == "" {
		return ErrEmptyProductID
	}
	if err := r.Debit(price); err != nil {
		return err
	}

	r.Purchases = append(r.Purchases, productID)
	r.touch()
	return nil
}

// AddExperience начисляет опыт и возвращает true, если уровень вырос.
func (r *Record) AddExperience(amount int) (leveledUp bool, err error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}

	before := r.Level()
	r.Experience += Experience(amount)
	r.touch()
	return r.Level() > before, nil
}

// ExtendStreak продлевает серию активных дней.
func (r *Record) ExtendStreak(days int) error {
	if days <= 0 {
		return ErrInvalidAmount
	}

	r.Streak += days
	r.touch()
	return nil
}

// DistinctPurchases возвращает количество различных купленных товаров.
func (r *Record) DistinctPurchases() int {
	seen := make(map[string]struct{}, len(r.Purchases))
	for _, id := range r.Purchases {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// HasPurchased проверяет, покупал ли студент указанный товар.
func (r *Record) HasPurchased(productID string) bool {
	for _, id := range r.Purchases {
		if id == productID {
			return true
		}
	}
	return false
}

// touch обновляет время последнего изменения.
func (r *Record) touch() {
	r.UpdatedAt = time.Now().UTC()
}

// String возвращает строковое представление записи для логирования.
func (r *Record) String() string {
	return fmt.Sprintf(
		"Record{ID: %s, Aqcha: %d, XP: %d, Level: %d, Purchases: %d}",
		r.ID, r.Aqcha, r.Experience, r.Level(), len(r.Purchases),
	)
}

// Clone создаёт глубокую копию записи.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	clone := *r
	clone.Purchases = append([]string(nil), r.Purchases...)
	clone.Months = make(map[string]MonthlyEntry, len(r.Months))
	for k, v := range r.Months {
		clone.Months[k] = v
	}
	return &clone
}

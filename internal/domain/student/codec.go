package student

import (
	"encoding/json"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CODEC & SCHEMA MIGRATION
// Запись хранится одной JSON-строкой в общем key-value хранилище.
// Схема версионируется: цепочка миграций приводит любую поддерживаемую
// версию к текущей до того, как запись увидит бизнес-логика.
// ══════════════════════════════════════════════════════════════════════════════

// Версии схемы сохранённой записи.
const (
	// SchemaV1 - историческая схема: баланс хранился в поле "diamonds".
	SchemaV1 = 1

	// SchemaV2 - текущая схема: баланс в поле "aqcha".
	SchemaV2 = 2

	// CurrentSchemaVersion - версия, в которой записи пишутся сейчас.
	CurrentSchemaVersion = SchemaV2
)

// recordDTO - сериализуемое представление записи.
// Ключи совпадают с форматом внешнего хранилища.
type recordDTO struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	Username      string                  `json:"username,omitempty"`
	Aqcha         *int                    `json:"aqcha,omitempty"`
	Diamonds      *int                    `json:"diamonds,omitempty"` // только в схеме v1
	Experience    int                     `json:"experience"`
	Streak        int                     `json:"streak"`
	Purchases     []string                `json:"purchases"`
	TotalSpent    int                     `json:"totalSpent"`
	Months        map[string]monthlyDTO   `json:"months,omitempty"`
	SchemaVersion int                     `json:"schemaVersion,omitempty"`
	Version       int64                   `json:"version,omitempty"`
	UpdatedAt     time.Time               `json:"updatedAt,omitempty"`
}

// monthlyDTO - сериализуемая запись журнала за месяц.
// Исторические ключи хранилища сохранены.
type monthlyDTO struct {
	Attendance int `json:"davomat"`
	Homework   int `json:"uy_vazifa"`
	Tasks      int `json:"tasks"`
	Penalty    int `json:"jarima"`
}

// EncodeRecord сериализует запись в текущую схему.
func EncodeRecord(r *Record) ([]byte, error) {
	if r == nil {
		return nil, ErrMalformedRecord
	}

	aqcha := int(r.Aqcha)
	dto := recordDTO{
		ID:            r.ID,
		Name:          r.Name,
		Username:      r.Username,
		Aqcha:         &aqcha,
		Experience:    int(r.Experience),
		Streak:        r.Streak,
		Purchases:     r.Purchases,
		TotalSpent:    r.TotalSpent,
		SchemaVersion: CurrentSchemaVersion,
		Version:       r.Version,
		UpdatedAt:     r.UpdatedAt,
	}
	if dto.Purchases == nil {
		dto.Purchases = []string{}
	}

	if len(r.Months) > 0 {
		dto.Months = make(map[string]monthlyDTO, len(r.Months))
		for k, m := range r.Months {
			dto.Months[k] = monthlyDTO{
				Attendance: m.Attendance,
				Homework:   m.Homework,
				Tasks:      m.Tasks,
				Penalty:    m.Penalty,
			}
		}
	}

	return json.Marshal(dto)
}

// DecodeRecord разбирает сохранённую запись и прогоняет цепочку миграций.
// Возвращает migrated=true, если схема была обновлена и запись нужно
// немедленно пересохранить.
//
// Повреждённая запись не разбирается частично: возвращается
// ErrMalformedRecord, и вызывающий код трактует её как отсутствующую.
func DecodeRecord(data []byte) (rec *Record, migrated bool, err error) {
	if len(data) == 0 {
		return nil, false, ErrMalformedRecord
	}

	var dto recordDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if dto.ID == "" {
		return nil, false, ErrMalformedRecord
	}

	migrated, err = migrateDTO(&dto)
	if err != nil {
		return nil, false, err
	}

	rec = &Record{
		ID:            dto.ID,
		Name:          dto.Name,
		Username:      dto.Username,
		Experience:    Experience(dto.Experience),
		Streak:        dto.Streak,
		Purchases:     dto.Purchases,
		TotalSpent:    dto.TotalSpent,
		Months:        make(map[string]MonthlyEntry, len(dto.Months)),
		SchemaVersion: dto.SchemaVersion,
		Version:       dto.Version,
		UpdatedAt:     dto.UpdatedAt,
	}
	if dto.Aqcha != nil {
		rec.Aqcha = Aqcha(*dto.Aqcha)
	}
	if rec.Purchases == nil {
		rec.Purchases = []string{}
	}
	for k, m := range dto.Months {
		rec.Months[k] = MonthlyEntry{
			Attendance: m.Attendance,
			Homework:   m.Homework,
			Tasks:      m.Tasks,
			Penalty:    m.Penalty,
		}
	}

	if !rec.Aqcha.IsValid() || !rec.Experience.IsValid() {
		return nil, false, ErrMalformedRecord
	}

	return rec, migrated, nil
}

// migrateDTO приводит DTO к текущей версии схемы. Идемпотентна:
// запись текущей версии проходит без изменений.
func migrateDTO(dto *recordDTO) (migrated bool, err error) {
	version := dto.SchemaVersion
	if version == 0 {
		// Записи без версии - исторический формат v1.
		version = SchemaV1
	}

	if version > CurrentSchemaVersion {
		return false, fmt.Errorf("record schema v%d is newer than supported v%d: %w",
			version, CurrentSchemaVersion, ErrMalformedRecord)
	}

	for version < CurrentSchemaVersion {
		switch version {
		case SchemaV1:
			migrateV1toV2(dto)
		}
		version++
		migrated = true
	}

	dto.SchemaVersion = CurrentSchemaVersion
	return migrated, nil
}

// migrateV1toV2 переименовывает историческое поле diamonds в aqcha.
// Если оба поля присутствуют, aqcha считается источником истины.
func migrateV1toV2(dto *recordDTO) {
	if dto.Aqcha == nil && dto.Diamonds != nil {
		dto.Aqcha = dto.Diamonds
	}
	dto.Diamonds = nil
}

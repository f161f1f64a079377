package student

// ══════════════════════════════════════════════════════════════════════════════
// MONTHLY LEDGER
// Помесячный журнал активности студента. Из него выводится конвертируемый
// опыт: посещаемость + домашние задания + задачи - штрафы.
// ══════════════════════════════════════════════════════════════════════════════

// MonthlyEntry - запись журнала за один месяц.
type MonthlyEntry struct {
	// Attendance - очки за посещаемость.
	Attendance int

	// Homework - очки за домашние задания.
	Homework int

	// Tasks - очки за задачи.
	Tasks int

	// Penalty - штрафные очки. Вычитаются из суммы месяца.
	Penalty int
}

// Total возвращает чистый опыт за месяц.
func (m MonthlyEntry) Total() int {
	return m.Attendance + m.Homework + m.Tasks - m.Penalty
}

// IsZero проверяет, что все поля месяца обнулены.
func (m MonthlyEntry) IsZero() bool {
	return m.Attendance == 0 && m.Homework == 0 && m.Tasks == 0 && m.Penalty == 0
}

// ConversionRate - сколько опыта журнала стоит одна единица валюты.
const ConversionRate = 1000

// LedgerExperience возвращает суммарный конвертируемый опыт по всем месяцам.
func (r *Record) LedgerExperience() int {
	total := 0
	for _, m := range r.Months {
		total += m.Total()
	}
	return total
}

// TotalPenalty возвращает сумму штрафов по всем месяцам.
func (r *Record) TotalPenalty() int {
	total := 0
	for _, m := range r.Months {
		total += m.Penalty
	}
	return total
}

// ConvertibleAqcha возвращает, сколько валюты даст конвертация сейчас.
func (r *Record) ConvertibleAqcha() int {
	xp := r.LedgerExperience()
	if xp < ConversionRate {
		return 0
	}
	return xp / ConversionRate
}

// ConvertExperience конвертирует накопленный опыт журнала в валюту.
// Курс: 1000 XP = 1 aqcha, остаток сгорает - журнал обнуляется целиком.
// Возвращает количество зачисленной валюты.
func (r *Record) ConvertExperience() (credited int, err error) {
	xp := r.LedgerExperience()
	if xp < ConversionRate {
		return 0, ErrInsufficientExperience
	}

	credited = xp / ConversionRate
	r.Aqcha += Aqcha(credited)
	r.resetLedger()
	r.touch()
	return credited, nil
}

// RecordMonth записывает или заменяет журнал за указанный месяц (ключ "YYYY-MM").
func (r *Record) RecordMonth(key string, entry MonthlyEntry) {
	if r.Months == nil {
		r.Months = make(map[string]MonthlyEntry)
	}
	r.Months[key] = entry
	r.touch()
}

// resetLedger обнуляет все поля всех месяцев.
// Ключи месяцев сохраняются, чтобы история периодов не терялась.
func (r *Record) resetLedger() {
	for k := range r.Months {
		r.Months[k] = MonthlyEntry{}
	}
}

package catalog

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ══════════════════════════════════════════════════════════════════════════════
// FILTER & SORT
// Фильтрация и сортировка - чистые функции: каталог никогда не мутируется,
// результат всегда новый срез.
// ══════════════════════════════════════════════════════════════════════════════

// SortKey представляет ключ сортировки витрины.
type SortKey string

const (
	// SortByName - по названию, с учётом локали, по возрастанию.
	SortByName SortKey = "name"

	// SortByPrice - по цене, по возрастанию.
	SortByPrice SortKey = "price"

	// SortByRarity - по редкости, по убыванию: самые редкие первыми.
	SortByRarity SortKey = "rarity"
)

// Filter - текущее состояние фильтра витрины.
type Filter struct {
	// Category - выбранная категория. Сентинел CategoryAll пропускает всё.
	Category Category

	// Query - поисковая строка. Пустая строка пропускает всё.
	Query string

	// Sort - ключ сортировки.
	Sort SortKey
}

// DefaultFilter возвращает фильтр по умолчанию: все категории, сортировка по имени.
func DefaultFilter() Filter {
	return Filter{Category: CategoryAll, Sort: SortByName}
}

// FilterEngine сортирует с учётом локали портала.
// Коллатор не потокобезопасен, поэтому защищён мьютексом.
type FilterEngine struct {
	mu       sync.Mutex
	collator *collate.Collator
}

// NewFilterEngine создаёт движок фильтрации для указанной локали.
func NewFilterEngine(locale language.Tag) *FilterEngine {
	return &FilterEngine{
		collator: collate.New(locale, collate.IgnoreCase),
	}
}

// FilteredProducts применяет фильтр к каталогу и возвращает новый
// отсортированный срез. Каталог не изменяется.
func (e *FilterEngine) FilteredProducts(c *Catalog, f Filter) []Product {
	result := make([]Product, 0, c.Size())
	query := strings.ToLower(strings.TrimSpace(f.Query))

	for _, p := range c.products {
		if !matchCategory(p, f.Category) {
			continue
		}
		if !matchQuery(p, query) {
			continue
		}
		result = append(result, p)
	}

	e.sortProducts(result, f.Sort)
	return result
}

// matchCategory проверяет категорию. Сентинел "all" и пустая категория
// пропускают любой товар.
func matchCategory(p Product, c Category) bool {
	if c == "" || c == CategoryAll {
		return true
	}
	return p.Category == c
}

// matchQuery ищет подстроку в названии или описании без учёта регистра.
func matchQuery(p Product, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.Description), query)
}

// sortProducts сортирует срез на месте по указанному ключу.
// Сортировка стабильна: товары с равным ключом сохраняют порядок каталога.
func (e *FilterEngine) sortProducts(products []Product, key SortKey) {
	switch key {
	case SortByPrice:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case SortByRarity:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Rarity > products[j].Rarity
		})
	default:
		e.mu.Lock()
		defer e.mu.Unlock()
		sort.SliceStable(products, func(i, j int) bool {
			return e.collator.CompareString(products[i].Name, products[j].Name) < 0
		})
	}
}

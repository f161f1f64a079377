// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STOREFRONT QUERY
// Собирает витрину целиком: отфильтрованные товары, счётчики категорий
// и активные предложения. Запись студента нужна только для баланса и
// отметки "куплено" - её отсутствие витрину не ломает.
// ══════════════════════════════════════════════════════════════════════════════

// GetStorefrontQuery содержит параметры витрины.
type GetStorefrontQuery struct {
	// Category - фильтр категории. Пустая строка означает все.
	Category string

	// Search - поисковая строка по названию и описанию.
	Search string

	// Sort - ключ сортировки: "name", "price" или "rarity".
	Sort string
}

// Validate нормализует параметры запроса.
// Неизвестные значения не ошибка: витрина откатывается к значениям
// по умолчанию, чтобы битая ссылка не ломала страницу.
func (q *GetStorefrontQuery) Validate() error {
	c := catalog.Category(q.Category)
	if q.Category == "" || (c != catalog.CategoryAll && !c.IsValid()) {
		q.Category = string(catalog.CategoryAll)
	}

	switch catalog.SortKey(q.Sort) {
	case catalog.SortByName, catalog.SortByPrice, catalog.SortByRarity:
	default:
		q.Sort = string(catalog.SortByName)
	}
	return nil
}

// ProductDTO - товар витрины для слоя представления.
type ProductDTO struct {
	// ID - идентификатор товара.
	ID string `json:"id"`

	// Name - название.
	Name string `json:"name"`

	// Description - описание.
	Description string `json:"description"`

	// Price - текущая цена.
	Price int `json:"price"`

	// OriginalPrice - цена до скидки. Ноль без распродажи.
	OriginalPrice int `json:"original_price,omitempty"`

	// DiscountPercent - процент скидки. Ноль без распродажи.
	DiscountPercent int `json:"discount_percent,omitempty"`

	// Category - категория товара.
	Category string `json:"category"`

	// Rarity - редкость.
	Rarity string `json:"rarity"`

	// Owned - покупал ли студент этот товар.
	Owned bool `json:"owned"`

	// Affordable - хватает ли текущего баланса.
	Affordable bool `json:"affordable"`
}

// OfferDTO - активное предложение для слоя представления.
type OfferDTO struct {
	// ID - идентификатор предложения.
	ID string `json:"id"`

	// Title - заголовок.
	Title string `json:"title"`

	// Description - описание.
	Description string `json:"description"`

	// OriginalPrice - цена без скидки.
	OriginalPrice int `json:"original_price"`

	// DiscountedPrice - цена со скидкой.
	DiscountedPrice int `json:"discounted_price"`

	// DiscountPercent - процент скидки.
	DiscountPercent int `json:"discount_percent"`

	// RemainingSeconds - секунд до истечения.
	RemainingSeconds int64 `json:"remaining_seconds"`

	// Countdown - человекочитаемый обратный отсчёт ("2д 5ч").
	Countdown string `json:"countdown"`
}

// GetStorefrontResult содержит собранную витрину.
type GetStorefrontResult struct {
	// Products - отфильтрованные и отсортированные товары.
	Products []ProductDTO `json:"products"`

	// CategoryCounts - количество товаров по категориям, ключ "all" - всего.
	CategoryCounts map[string]int `json:"category_counts"`

	// Offers - активные предложения. Истёкшие не показываются.
	Offers []OfferDTO `json:"offers"`

	// Balance - текущий баланс. Ноль, если записи нет.
	Balance int `json:"balance"`

	// HasRecord - найдена ли запись студента.
	HasRecord bool `json:"has_record"`

	// GeneratedAt - время сборки витрины.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetStorefrontHandler собирает витрину.
type GetStorefrontHandler struct {
	records student.RecordRepository
	catalog *catalog.Catalog
	offers  *catalog.OfferBoard
	engine  *catalog.FilterEngine

	now func() time.Time
}

// NewGetStorefrontHandler создаёт обработчик витрины.
func NewGetStorefrontHandler(
	records student.RecordRepository,
	cat *catalog.Catalog,
	offers *catalog.OfferBoard,
	engine *catalog.FilterEngine,
) *GetStorefrontHandler {
	return &GetStorefrontHandler{
		records: records,
		catalog: cat,
		offers:  offers,
		engine:  engine,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Handle выполняет запрос.
func (h *GetStorefrontHandler) Handle(ctx context.Context, query GetStorefrontQuery) (*GetStorefrontResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	// Запись нужна только для баланса и отметок владения.
	// Её отсутствие не ошибка витрины.
	var balance int
	var hasRecord bool
	rec, err := h.records.Load(ctx)
	if err == nil {
		balance = int(rec.Aqcha)
		hasRecord = true
	}

	filter := catalog.Filter{
		Category: catalog.Category(query.Category),
		Query:    query.Search,
		Sort:     catalog.SortKey(query.Sort),
	}

	products := h.engine.FilteredProducts(h.catalog, filter)
	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dto := ProductDTO{
			ID:              p.ID,
			Name:            p.Name,
			Description:     p.Description,
			Price:           p.Price,
			OriginalPrice:   p.OriginalPrice,
			DiscountPercent: p.DiscountPercent(),
			Category:        string(p.Category),
			Rarity:          p.Rarity.String(),
			Affordable:      hasRecord && balance >= p.Price,
		}
		if hasRecord {
			dto.Owned = rec.HasPurchased(p.ID)
		}
		dtos = append(dtos, dto)
	}

	counts := make(map[string]int)
	for c, n := range h.catalog.CategoryCounts() {
		counts[string(c)] = n
	}

	now := h.now()
	active := h.offers.Active(now)
	offerDTOs := make([]OfferDTO, 0, len(active))
	for _, o := range active {
		offerDTOs = append(offerDTOs, OfferDTO{
			ID:               o.ID,
			Title:            o.Title,
			Description:      o.Description,
			OriginalPrice:    o.OriginalPrice,
			DiscountedPrice:  o.DiscountedPrice,
			DiscountPercent:  o.DiscountPercent(),
			RemainingSeconds: int64(o.Remaining(now).Seconds()),
			Countdown:        timeutil.FormatCountdown(o.Remaining(now)),
		})
	}

	return &GetStorefrontResult{
		Products:       dtos,
		CategoryCounts: counts,
		Offers:         offerDTOs,
		Balance:        balance,
		HasRecord:      hasRecord,
		GeneratedAt:    now,
	}, nil
}

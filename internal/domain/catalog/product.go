// Package catalog содержит доменную модель витрины: товары, редкости,
// специальные предложения и чистые функции фильтрации.
// Каталог неизменяем в рамках сессии.
package catalog

import (
	"errors"
	"fmt"
	"math"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Category представляет категорию товара.
type Category string

const (
	// CategoryAll - сентинел фильтра "все категории". Товару не присваивается.
	CategoryAll Category = "all"

	CategoryStationery Category = "stationery"
	CategorySnacks     Category = "snacks"
	CategoryGames      Category = "games"
	CategoryMerch      Category = "merch"

	// CategoryPremium - премиальные товары. Покупка любого из них
	// открывает отдельное достижение.
	CategoryPremium Category = "premium"
)

// AllCategories возвращает фиксированный набор категорий товаров
// в порядке отображения. Сентинел "all" не входит.
func AllCategories() []Category {
	return []Category{
		CategoryStationery,
		CategorySnacks,
		CategoryGames,
		CategoryMerch,
		CategoryPremium,
	}
}

// IsValid проверяет, что категория входит в фиксированный набор.
func (c Category) IsValid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Rarity представляет редкость товара. Порядок строгий:
// common < rare < epic < legendary < mythic.
type Rarity int

const (
	RarityCommon Rarity = iota + 1
	RarityRare
	RarityEpic
	RarityLegendary
	RarityMythic
)

// rarityNames - строковые имена редкостей для сериализации и логов.
var rarityNames = map[Rarity]string{
	RarityCommon:    "common",
	RarityRare:      "rare",
	RarityEpic:      "epic",
	RarityLegendary: "legendary",
	RarityMythic:    "mythic",
}

// String возвращает имя редкости.
func (r Rarity) String() string {
	if name, ok := rarityNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rarity(%d)", int(r))
}

// IsValid проверяет, что редкость известна.
func (r Rarity) IsValid() bool {
	_, ok := rarityNames[r]
	return ok
}

// ParseRarity разбирает строковое имя редкости.
func ParseRarity(s string) (Rarity, error) {
	for r, name := range rarityNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRarity, s)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrProductNotFound - товар с указанным идентификатором не найден.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidProduct - товар не проходит валидацию.
	ErrInvalidProduct = errors.New("invalid product")

	// ErrUnknownRarity - неизвестное имя редкости.
	ErrUnknownRarity = errors.New("unknown rarity")

	// ErrOfferNotFound - предложение с указанным идентификатором не найдено.
	ErrOfferNotFound = errors.New("offer not found")

	// ErrOfferExpired - срок действия предложения истёк.
	ErrOfferExpired = errors.New("offer expired")

	// ErrInvalidOffer - предложение не проходит валидацию.
	ErrInvalidOffer = errors.New("invalid offer")
)

// ══════════════════════════════════════════════════════════════════════════════
// PRODUCT
// ══════════════════════════════════════════════════════════════════════════════

// Bonuses - необязательные бонусы товара, начисляемые при покупке.
type Bonuses struct {
	// Experience - бонусный опыт.
	Experience int

	// Streak - бонусные дни серии.
	Streak int

	// Cashback - возврат валюты после покупки.
	Cashback int
}

// IsZero проверяет, что бонусов нет.
func (b Bonuses) IsZero() bool {
	return b.Experience == 0 && b.Streak == 0 && b.Cashback == 0
}

// Product - товар витрины. Неизменяем после загрузки каталога.
type Product struct {
	// ID - уникальный идентификатор товара.
	ID string

	// Name - отображаемое название.
	Name string

	// Description - описание товара.
	Description string

	// Price - цена в aqcha. Всегда положительная.
	Price int

	// Category - категория из фиксированного набора.
	Category Category

	// Rarity - редкость товара.
	Rarity Rarity

	// Bonuses - необязательные бонусы при покупке.
	Bonuses Bonuses

	// OriginalPrice - цена до скидки. Ноль, если товар не на распродаже.
	// Если задана, строго больше Price.
	OriginalPrice int
}

// OnSale проверяет, что товар продаётся со скидкой.
func (p Product) OnSale() bool {
	return p.OriginalPrice > 0 && p.Price < p.OriginalPrice
}

// DiscountPercent возвращает процент скидки, округлённый до целого.
// Ноль для товара без распродажи.
func (p Product) DiscountPercent() int {
	if !p.OnSale() {
		return 0
	}
	return int(math.Round((1 - float64(p.Price)/float64(p.OriginalPrice)) * 100))
}

// Validate проверяет инварианты товара.
func (p Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidProduct)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: %s: empty name", ErrInvalidProduct, p.ID)
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: %s: price must be positive", ErrInvalidProduct, p.ID)
	}
	if !p.Category.IsValid() {
		return fmt.Errorf("%w: %s: unknown category %q", ErrInvalidProduct, p.ID, p.Category)
	}
	if !p.Rarity.IsValid() {
		return fmt.Errorf("%w: %s: unknown rarity %d", ErrInvalidProduct, p.ID, p.Rarity)
	}
	if p.OriginalPrice != 0 && p.OriginalPrice <= p.Price {
		return fmt.Errorf("%w: %s: originalPrice must exceed price", ErrInvalidProduct, p.ID)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog - неизменяемый набор товаров с индексом по идентификатору.
type Catalog struct {
	products []Product
	byID     map[string]Product
}

// NewCatalog создаёт каталог из списка товаров с валидацией каждого.
// Дубликаты идентификаторов отклоняются.
func NewCatalog(products []Product) (*Catalog, error) {
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, exists := byID[p.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidProduct, p.ID)
		}
		byID[p.ID] = p
	}

	return &Catalog{
		products: append([]Product(nil), products...),
		byID:     byID,
	}, nil
}

// Products возвращает копию списка товаров в порядке каталога.
func (c *Catalog) Products() []Product {
	return append([]Product(nil), c.products...)
}

// Product возвращает товар по идентификатору.
func (c *Catalog) Product(id string) (Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %q", ErrProductNotFound, id)
	}
	return p, nil
}

// Size возвращает количество товаров в каталоге.
func (c *Catalog) Size() int {
	return len(c.products)
}

// CategoryCounts возвращает количество товаров по категориям.
// Ключ "all" равен размеру каталога.
func (c *Catalog) CategoryCounts() map[Category]int {
	counts := make(map[Category]int, len(AllCategories())+1)
	counts[CategoryAll] = len(c.products)
	for _, p := range c.products {
		counts[p.Category]++
	}
	return counts
}

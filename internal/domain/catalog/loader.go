package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOADER
// Каталог и предложения описываются YAML-файлом. Если путь не задан,
// используется вшитый каталог по умолчанию.
// ══════════════════════════════════════════════════════════════════════════════

//go:embed defaults.yaml
var defaultCatalogYAML []byte

// productYAML - YAML-представление товара.
type productYAML struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Price         int    `yaml:"price"`
	Category      string `yaml:"category"`
	Rarity        string `yaml:"rarity"`
	OriginalPrice int    `yaml:"original_price"`
	Bonuses       struct {
		Experience int `yaml:"experience"`
		Streak     int `yaml:"streak"`
		Cashback   int `yaml:"cashback"`
	} `yaml:"bonuses"`
}

// offerYAML - YAML-представление предложения. Срок задаётся либо
// абсолютной меткой expires_at, либо длительностью expires_in от загрузки.
type offerYAML struct {
	ID              string        `yaml:"id"`
	Title           string        `yaml:"title"`
	Description     string        `yaml:"description"`
	OriginalPrice   int           `yaml:"original_price"`
	DiscountedPrice int           `yaml:"discounted_price"`
	ExpiresAt       time.Time `yaml:"expires_at"`
	ExpiresIn       string    `yaml:"expires_in"`
}

type catalogYAML struct {
	Products []productYAML `yaml:"products"`
	Offers   []offerYAML   `yaml:"offers"`
}

// Load читает каталог и предложения из YAML-файла.
// Пустой путь загружает вшитый каталог по умолчанию.
func Load(path string, now time.Time) (*Catalog, *OfferBoard, error) {
	data := defaultCatalogYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read catalog file: %w", err)
		}
	}
	return Parse(data, now)
}

// Parse разбирает YAML-описание каталога и предложений.
func Parse(data []byte, now time.Time) (*Catalog, *OfferBoard, error) {
	var doc catalogYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse catalog yaml: %w", err)
	}

	products := make([]Product, 0, len(doc.Products))
	for _, p := range doc.Products {
		rarity, err := ParseRarity(p.Rarity)
		if err != nil {
			return nil, nil, fmt.Errorf("product %q: %w", p.ID, err)
		}
		products = append(products, Product{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Price:         p.Price,
			Category:      Category(p.Category),
			Rarity:        rarity,
			OriginalPrice: p.OriginalPrice,
			Bonuses: Bonuses{
				Experience: p.Bonuses.Experience,
				Streak:     p.Bonuses.Streak,
				Cashback:   p.Bonuses.Cashback,
			},
		})
	}

	offers := make([]SpecialOffer, 0, len(doc.Offers))
	for _, o := range doc.Offers {
		expiresAt := o.ExpiresAt
		if expiresAt.IsZero() && o.ExpiresIn != "" {
			ttl, err := time.ParseDuration(o.ExpiresIn)
			if err != nil {
				return nil, nil, fmt.Errorf("offer %q: bad expires_in: %w", o.ID, err)
			}
			expiresAt = now.Add(ttl)
		}
		offers = append(offers, SpecialOffer{
			ID:              o.ID,
			Title:           o.Title,
			Description:     o.Description,
			OriginalPrice:   o.OriginalPrice,
			DiscountedPrice: o.DiscountedPrice,
			ExpiresAt:       expiresAt,
		})
	}

	cat, err := NewCatalog(products)
	if err != nil {
		return nil, nil, err
	}
	board, err := NewOfferBoard(offers)
	if err != nil {
		return nil, nil, err
	}
	return cat, board, nil
}

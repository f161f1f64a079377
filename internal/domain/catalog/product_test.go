package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProduct(id string) Product {
	return Product{
		ID:       id,
		Name:     "Товар " + id,
		Price:    10,
		Category: CategoryStationery,
		Rarity:   RarityCommon,
	}
}

func TestProduct_DiscountPercent(t *testing.T) {
	p := validProduct("p1")
	assert.Equal(t, 0, p.DiscountPercent())
	assert.False(t, p.OnSale())

	p.Price = 25
	p.OriginalPrice = 35
	assert.True(t, p.OnSale())
	// round((1 - 25/35) * 100) = 29
	assert.Equal(t, 29, p.DiscountPercent())

	p.Price = 50
	p.OriginalPrice = 100
	assert.Equal(t, 50, p.DiscountPercent())
}

func TestProduct_Validate(t *testing.T) {
	assert.NoError(t, validProduct("p1").Validate())

	bad := validProduct("p1")
	bad.Price = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidProduct)

	bad = validProduct("p1")
	bad.Category = "unknown"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidProduct)

	bad = validProduct("p1")
	bad.OriginalPrice = 5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidProduct)
}

func TestParseRarity(t *testing.T) {
	r, err := ParseRarity("legendary")
	require.NoError(t, err)
	assert.Equal(t, RarityLegendary, r)

	_, err = ParseRarity("ultra")
	assert.ErrorIs(t, err, ErrUnknownRarity)
}

func TestRarity_Ordering(t *testing.T) {
	assert.True(t, RarityCommon < RarityRare)
	assert.True(t, RarityRare < RarityEpic)
	assert.True(t, RarityEpic < RarityLegendary)
	assert.True(t, RarityLegendary < RarityMythic)
}

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Product{validProduct("p1"), validProduct("p1")})
	assert.ErrorIs(t, err, ErrInvalidProduct)
}

func TestCatalog_Lookup(t *testing.T) {
	cat, err := NewCatalog([]Product{validProduct("p1"), validProduct("p2")})
	require.NoError(t, err)

	p, err := cat.Product("p2")
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)

	_, err = cat.Product("ghost")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalog_CategoryCounts(t *testing.T) {
	p1 := validProduct("p1")
	p2 := validProduct("p2")
	p3 := validProduct("p3")
	p3.Category = CategoryPremium

	cat, err := NewCatalog([]Product{p1, p2, p3})
	require.NoError(t, err)

	counts := cat.CategoryCounts()
	assert.Equal(t, 3, counts[CategoryAll])
	assert.Equal(t, 2, counts[CategoryStationery])
	assert.Equal(t, 1, counts[CategoryPremium])
	assert.Equal(t, 0, counts[CategoryGames])
}

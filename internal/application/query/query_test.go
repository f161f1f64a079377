package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/achievement"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/persistence/memory"
)

func storefrontFixtures(t *testing.T) (*catalog.Catalog, *catalog.OfferBoard, *catalog.FilterEngine) {
	t.Helper()

	cat, err := catalog.NewCatalog([]catalog.Product{
		{ID: "pen", Name: "Ручка", Price: 15, Category: catalog.CategoryStationery, Rarity: catalog.RarityCommon},
		{ID: "chips", Name: "Чипсы", Price: 7, Category: catalog.CategorySnacks, Rarity: catalog.RarityCommon},
		{ID: "hoodie", Name: "Худи", Price: 80, OriginalPrice: 100, Category: catalog.CategoryMerch, Rarity: catalog.RarityRare},
	})
	require.NoError(t, err)

	board, err := catalog.NewOfferBoard([]catalog.SpecialOffer{
		{ID: "fresh", Title: "Свежая акция", OriginalPrice: 50, DiscountedPrice: 30,
			ExpiresAt: time.Now().Add(time.Hour)},
		{ID: "stale", Title: "Старая акция", OriginalPrice: 50, DiscountedPrice: 10,
			ExpiresAt: time.Now().Add(-time.Hour)},
	})
	require.NoError(t, err)

	return cat, board, catalog.NewFilterEngine(language.Russian)
}

func TestGetStorefront_FullPage(t *testing.T) {
	cat, board, engine := storefrontFixtures(t)

	store := memory.NewRecordStore()
	rec, err := student.NewRecord(student.NewRecordParams{
		ID: "student-1", Name: "Айдана", InitialBalance: 20,
	})
	require.NoError(t, err)
	require.NoError(t, rec.RecordPurchase("pen", 15))
	rec.Aqcha = 20 // баланс после сидирования фиксируем руками
	store.Seed(rec)

	h := NewGetStorefrontHandler(store, cat, board, engine)

	res, err := h.Handle(context.Background(), GetStorefrontQuery{})
	require.NoError(t, err)

	require.Len(t, res.Products, 3)
	assert.True(t, res.HasRecord)
	assert.Equal(t, 20, res.Balance)

	byID := make(map[string]ProductDTO)
	for _, p := range res.Products {
		byID[p.ID] = p
	}
	assert.True(t, byID["pen"].Owned)
	assert.False(t, byID["hoodie"].Owned)
	assert.True(t, byID["chips"].Affordable)
	assert.False(t, byID["hoodie"].Affordable)
	assert.Equal(t, 20, byID["hoodie"].DiscountPercent)

	// Счётчик "all" равен размеру каталога
	assert.Equal(t, 3, res.CategoryCounts["all"])
	assert.Equal(t, 1, res.CategoryCounts["merch"])

	// Истёкшая акция не показывается
	require.Len(t, res.Offers, 1)
	assert.Equal(t, "fresh", res.Offers[0].ID)
	assert.Equal(t, 40, res.Offers[0].DiscountPercent)
	assert.Greater(t, res.Offers[0].RemainingSeconds, int64(0))
}

func TestGetStorefront_WithoutRecord(t *testing.T) {
	cat, board, engine := storefrontFixtures(t)

	h := NewGetStorefrontHandler(memory.NewRecordStore(), cat, board, engine)

	res, err := h.Handle(context.Background(), GetStorefrontQuery{})
	require.NoError(t, err)

	// Витрина работает и без записи: баланс нулевой, владения нет
	assert.False(t, res.HasRecord)
	assert.Equal(t, 0, res.Balance)
	require.Len(t, res.Products, 3)
	for _, p := range res.Products {
		assert.False(t, p.Owned)
		assert.False(t, p.Affordable)
	}
}

func TestGetStorefront_FilterAndFallback(t *testing.T) {
	cat, board, engine := storefrontFixtures(t)
	h := NewGetStorefrontHandler(memory.NewRecordStore(), cat, board, engine)

	res, err := h.Handle(context.Background(), GetStorefrontQuery{Category: "snacks"})
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "chips", res.Products[0].ID)

	// Неизвестная категория откатывается к "all", а не ломает страницу
	res, err = h.Handle(context.Background(), GetStorefrontQuery{Category: "weapons", Sort: "bogus"})
	require.NoError(t, err)
	assert.Len(t, res.Products, 3)
}

type staticAchievements struct {
	items []achievement.Achievement
}

func (s staticAchievements) Achievements() []achievement.Achievement {
	return s.items
}

func TestGetProgress_FullPage(t *testing.T) {
	store := memory.NewRecordStore()
	rec, err := student.NewRecord(student.NewRecordParams{
		ID: "student-1", Name: "Айдана", InitialBalance: 42,
	})
	require.NoError(t, err)
	_, err = rec.AddExperience(250)
	require.NoError(t, err)
	require.NoError(t, rec.ExtendStreak(6))
	rec.RecordMonth("2026-08", student.MonthlyEntry{Attendance: 700, Homework: 400, Tasks: 100, Penalty: 50})
	rec.RecordMonth("2026-07", student.MonthlyEntry{Attendance: 500, Homework: 300, Tasks: 200})
	store.Seed(rec)

	ledger := memory.NewAuditLedger()
	require.NoError(t, ledger.Append(context.Background(), student.LedgerEntry{
		StudentID: "student-1", Kind: "debit", Amount: 5, Balance: 42,
		Source: "buy", OccurredAt: time.Now(),
	}))

	unlockedAt := time.Now().UTC()
	src := staticAchievements{items: []achievement.Achievement{
		{ID: 1, Code: achievement.CodeFirstPurchase, Title: "Первая покупка", Reward: 50,
			Unlocked: true, UnlockedAt: unlockedAt},
		{ID: 2, Code: achievement.CodeCollector, Title: "Коллекционер", Reward: 100},
	}}

	h := NewGetProgressHandler(store, ledger, src)

	res, err := h.Handle(context.Background(), GetProgressQuery{})
	require.NoError(t, err)

	assert.Equal(t, 42, res.Balance)
	assert.Equal(t, 3, res.Level)
	assert.Equal(t, 50, res.LevelProgress)
	assert.Equal(t, 6, res.Streak)

	// Месяцы отсортированы хронологически
	require.Len(t, res.Months, 2)
	assert.Equal(t, "2026-07", res.Months[0].Key)
	assert.Equal(t, 1000, res.Months[0].Total)
	assert.Equal(t, 1150, res.Months[1].Total)

	assert.Equal(t, 2150, res.LedgerExperience)
	assert.Equal(t, 2, res.ConvertibleAqcha)
	assert.Equal(t, 50, res.TotalPenalty)

	require.Len(t, res.Achievements, 2)
	assert.True(t, res.Achievements[0].Unlocked)
	require.NotNil(t, res.Achievements[0].UnlockedAt)
	assert.Nil(t, res.Achievements[1].UnlockedAt)

	require.Len(t, res.History, 1)
	assert.Equal(t, "debit", res.History[0].Kind)
}

func TestGetProgress_NoRecord(t *testing.T) {
	h := NewGetProgressHandler(memory.NewRecordStore(), nil, nil)

	_, err := h.Handle(context.Background(), GetProgressQuery{})
	require.ErrorIs(t, err, student.ErrRecordNotFound)
}

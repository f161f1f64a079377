package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	products := []catalog.Product{
		{ID: "pen", Name: "Ручка", Price: 10, Category: catalog.CategoryStationery, Rarity: catalog.RarityCommon},
		{ID: "book", Name: "Книга", Price: 20, Category: catalog.CategoryStationery, Rarity: catalog.RarityRare},
		{ID: "snack", Name: "Снэк", Price: 5, Category: catalog.CategorySnacks, Rarity: catalog.RarityCommon},
		{ID: "game", Name: "Игра", Price: 40, Category: catalog.CategoryGames, Rarity: catalog.RarityEpic},
		{ID: "mentor", Name: "Ментор", Price: 200, Category: catalog.CategoryPremium, Rarity: catalog.RarityMythic},
	}
	cat, err := catalog.NewCatalog(products)
	require.NoError(t, err)
	return cat
}

func testRecord(t *testing.T, purchases ...string) *student.Record {
	t.Helper()
	rec, err := student.NewRecord(student.NewRecordParams{ID: "stu-1", Name: "Aruzhan", InitialBalance: 1000})
	require.NoError(t, err)
	for _, id := range purchases {
		require.NoError(t, rec.RecordPurchase(id, 1))
	}
	return rec
}

func TestUnlock_IsOneShot(t *testing.T) {
	a := Achievement{ID: 1, Code: CodeFirstPurchase, Reward: 50}
	first := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

	require.NoError(t, a.Unlock(first))
	assert.True(t, a.Unlocked)
	assert.Equal(t, first, a.UnlockedAt)

	err := a.Unlock(first.Add(time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyUnlocked)
	// Метка времени первой разблокировки не перезаписывается.
	assert.Equal(t, first, a.UnlockedAt)
}

func TestEvaluate_FirstPurchase(t *testing.T) {
	set := Defaults()
	now := time.Now()

	unlocked := set.Evaluate(testRecord(t), testCatalog(t), now)
	assert.Empty(t, unlocked)

	unlocked = set.Evaluate(testRecord(t, "pen"), testCatalog(t), now)
	require.Len(t, unlocked, 1)
	assert.Equal(t, CodeFirstPurchase, unlocked[0].Code)
	assert.Equal(t, 50, unlocked[0].Reward)
}

func TestEvaluate_CollectorCountsDistinctOnly(t *testing.T) {
	set := Defaults()
	now := time.Now()

	// Восемь покупок, но только четыре различных товара.
	rec := testRecord(t, "pen", "pen", "book", "book", "snack", "snack", "game", "game")
	set.Evaluate(rec, testCatalog(t), now)

	collector, err := set.ByCode(CodeCollector)
	require.NoError(t, err)
	assert.False(t, collector.Unlocked)

	require.NoError(t, rec.RecordPurchase("mentor", 1))
	unlocked := set.Evaluate(rec, testCatalog(t), now)

	assert.True(t, collector.Unlocked)
	// Пятый различный товар премиальный, оба достижения в одном проходе.
	codes := make([]string, len(unlocked))
	for i, a := range unlocked {
		codes[i] = a.Code
	}
	assert.Equal(t, []string{CodeCollector, CodePremiumBuyer}, codes)
}

func TestEvaluate_PremiumBuyer(t *testing.T) {
	set := Defaults()
	now := time.Now()

	set.Evaluate(testRecord(t, "pen", "book"), testCatalog(t), now)
	premium, err := set.ByCode(CodePremiumBuyer)
	require.NoError(t, err)
	assert.False(t, premium.Unlocked)

	unlocked := set.Evaluate(testRecord(t, "mentor"), testCatalog(t), now)
	assert.True(t, premium.Unlocked)

	codes := make([]string, len(unlocked))
	for i, a := range unlocked {
		codes[i] = a.Code
	}
	assert.Contains(t, codes, CodePremiumBuyer)
}

func TestEvaluate_UnlockedNeverReEvaluated(t *testing.T) {
	set := Defaults()
	now := time.Now()
	rec := testRecord(t, "pen")

	first := set.Evaluate(rec, testCatalog(t), now)
	require.Len(t, first, 1)

	again := set.Evaluate(rec, testCatalog(t), now.Add(time.Minute))
	assert.Empty(t, again)
	assert.Equal(t, 1, set.UnlockedCount())
}

func TestEvaluate_OrderIsIDAscending(t *testing.T) {
	set, err := NewSet([]Achievement{
		{ID: 3, Code: CodePremiumBuyer, Reward: 200},
		{ID: 1, Code: CodeFirstPurchase, Reward: 50},
		{ID: 2, Code: CodeCollector, Reward: 100},
	})
	require.NoError(t, err)

	rec := testRecord(t, "pen", "book", "snack", "game", "mentor")
	unlocked := set.Evaluate(rec, testCatalog(t), time.Now())

	require.Len(t, unlocked, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{unlocked[0].ID, unlocked[1].ID, unlocked[2].ID})
}

func TestEvaluate_PurchaseMissingFromCatalogIgnored(t *testing.T) {
	set := Defaults()
	rec := testRecord(t, "deleted-product")

	unlocked := set.Evaluate(rec, testCatalog(t), time.Now())

	// Первая покупка засчитывается, премиум по удалённому товару - нет.
	require.Len(t, unlocked, 1)
	assert.Equal(t, CodeFirstPurchase, unlocked[0].Code)
}

func TestNewSet_RejectsDuplicateIDs(t *testing.T) {
	_, err := NewSet([]Achievement{
		{ID: 1, Code: "a"},
		{ID: 1, Code: "b"},
	})
	assert.ErrorIs(t, err, ErrInvalidAchievement)
}

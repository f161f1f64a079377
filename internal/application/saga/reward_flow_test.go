package saga

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-reward-hub/internal/application/command"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/achievement"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/messaging"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/notifier"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/persistence/memory"
)

func rewardCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	products := []catalog.Product{
		{ID: "p1", Name: "Ручка", Price: 15, Category: catalog.CategoryStationery, Rarity: catalog.RarityCommon},
		{ID: "p2", Name: "Чипсы", Price: 1, Category: catalog.CategorySnacks, Rarity: catalog.RarityCommon},
		{ID: "p3", Name: "Сок", Price: 1, Category: catalog.CategorySnacks, Rarity: catalog.RarityCommon},
		{ID: "p4", Name: "Блокнот", Price: 1, Category: catalog.CategoryStationery, Rarity: catalog.RarityCommon},
		{ID: "prem", Name: "Наушники", Price: 1, Category: catalog.CategoryPremium, Rarity: catalog.RarityEpic},
	}
	cat, err := catalog.NewCatalog(products)
	require.NoError(t, err)
	return cat
}

func seed(t *testing.T, store *memory.RecordStore, balance int) {
	t.Helper()

	rec, err := student.NewRecord(student.NewRecordParams{
		ID: "student-1", Name: "Айдана", InitialBalance: balance,
	})
	require.NoError(t, err)
	store.Seed(rec)
}

// Полный конвейер: команда покупки публикует событие в синхронную шину,
// сага открывает достижение и доначисляет награду.
func TestRewardFlow_FirstPurchase(t *testing.T) {
	store := memory.NewRecordStore()
	seed(t, store, 20)

	queue := notifier.NewQueue()
	defer queue.Close()
	cat := rewardCatalog(t)

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()

	saga := NewRewardFlowSaga(store, cat, nil, queue, bus, nil, nil, DefaultRewardFlowConfig())
	defer saga.Close()
	require.NoError(t, saga.Prime(context.Background()))
	require.NoError(t, saga.Attach(bus))

	buy := command.NewBuyProductHandler(store, cat, nil, queue, bus, nil, nil)

	res, err := buy.Handle(context.Background(), command.BuyProductCommand{ProductID: "p1"})
	require.NoError(t, err)

	// Команда видит баланс после списания, до награды
	assert.Equal(t, 5, res.NewBalance)

	// Сага уже отработала синхронно: 20 - 15 + 50 = 55
	rec, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, student.Aqcha(55), rec.Aqcha)

	// Тост покупки и тост достижения
	assert.Equal(t, 2, queue.Len())

	// Попап показывает первое достижение
	popup := saga.CurrentPopup()
	require.NotNil(t, popup)
	assert.Equal(t, achievement.CodeFirstPurchase, popup.Achievement.Code)
}

func TestRewardFlow_NoRepeatedRewards(t *testing.T) {
	store := memory.NewRecordStore()
	seed(t, store, 100)

	queue := notifier.NewQueue()
	defer queue.Close()
	cat := rewardCatalog(t)

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()

	saga := NewRewardFlowSaga(store, cat, nil, queue, bus, nil, nil, DefaultRewardFlowConfig())
	defer saga.Close()
	require.NoError(t, saga.Attach(bus))

	buy := command.NewBuyProductHandler(store, cat, nil, queue, bus, nil, nil)

	_, err := buy.Handle(context.Background(), command.BuyProductCommand{ProductID: "p2"})
	require.NoError(t, err)

	rec, _ := store.Load(context.Background())
	afterFirst := rec.Aqcha

	// Повторная покупка того же товара: достижение уже открыто,
	// награда не начисляется второй раз
	_, err = buy.Handle(context.Background(), command.BuyProductCommand{ProductID: "p2"})
	require.NoError(t, err)

	rec, _ = store.Load(context.Background())
	assert.Equal(t, afterFirst-1, rec.Aqcha)
}

func TestRewardFlow_CollectorAndPremiumTogether(t *testing.T) {
	store := memory.NewRecordStore()

	// Четыре разных товара уже куплены, достижения уже открыты прогревом
	rec, err := student.NewRecord(student.NewRecordParams{
		ID: "student-1", Name: "Айдана", InitialBalance: 10,
	})
	require.NoError(t, err)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		rec.Purchases = append(rec.Purchases, id)
	}
	store.Seed(rec)

	queue := notifier.NewQueue()
	defer queue.Close()
	cat := rewardCatalog(t)
	ledger := memory.NewAuditLedger()

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()

	saga := NewRewardFlowSaga(store, cat, ledger, queue, bus, nil, nil, DefaultRewardFlowConfig())
	defer saga.Close()
	require.NoError(t, saga.Prime(context.Background()))
	require.NoError(t, saga.Attach(bus))

	// Прогрев открыл только first_purchase, без начисления
	stored, _ := store.Load(context.Background())
	assert.Equal(t, student.Aqcha(10), stored.Aqcha)

	buy := command.NewBuyProductHandler(store, cat, nil, queue, bus, nil, nil)

	// Пятый различный товар премиальный: collector и premium_buyer
	// открываются одной покупкой, в порядке идентификаторов
	_, err = buy.Handle(context.Background(), command.BuyProductCommand{ProductID: "prem"})
	require.NoError(t, err)

	// 10 - 1 + 100 + 200
	stored, _ = store.Load(context.Background())
	assert.Equal(t, student.Aqcha(309), stored.Aqcha)

	var unlocked []string
	for _, a := range saga.Achievements() {
		if a.Unlocked {
			unlocked = append(unlocked, a.Code)
		}
	}
	assert.Equal(t, []string{
		achievement.CodeFirstPurchase,
		achievement.CodeCollector,
		achievement.CodePremiumBuyer,
	}, unlocked)

	// В журнале аудита по строке на каждое новое достижение
	history, err := ledger.History(context.Background(), "student-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "reward:"+achievement.CodePremiumBuyer, history[0].Source)
	assert.Equal(t, "reward:"+achievement.CodeCollector, history[1].Source)
}

// Предложение - отдельный путь наград: покупка предложения не попадает
// в историю покупок и не открывает покупательские достижения даже при
// последующем проходе оценки.
func TestRewardFlow_OfferClaimGrantsNoPurchaseAchievements(t *testing.T) {
	store := memory.NewRecordStore()
	seed(t, store, 100)

	queue := notifier.NewQueue()
	defer queue.Close()

	offers, err := catalog.NewOfferBoard([]catalog.SpecialOffer{
		{
			ID: "combo", Title: "Комбо недели",
			OriginalPrice: 50, DiscountedPrice: 30,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	})
	require.NoError(t, err)

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()

	saga := NewRewardFlowSaga(store, rewardCatalog(t), nil, queue, bus, nil, nil, DefaultRewardFlowConfig())
	defer saga.Close()
	require.NoError(t, saga.Prime(context.Background()))
	require.NoError(t, saga.Attach(bus))

	claim := command.NewClaimOfferHandler(store, offers, nil, queue, bus, nil, nil)

	res, err := claim.Handle(context.Background(), command.ClaimOfferCommand{OfferID: "combo"})
	require.NoError(t, err)
	assert.Equal(t, 70, res.NewBalance)

	// Ни записи в покупках, ни награды за first_purchase
	rec, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rec.Purchases)
	assert.Equal(t, student.Aqcha(70), rec.Aqcha)

	// Принудительный проход оценки тоже ничего не открывает
	_, err = saga.Execute(context.Background())
	require.NoError(t, err)

	for _, a := range saga.Achievements() {
		assert.False(t, a.Unlocked, a.Code)
	}
	assert.Nil(t, saga.CurrentPopup())
}

func TestRewardFlow_PopupLastWriterWins(t *testing.T) {
	store := memory.NewRecordStore()
	seed(t, store, 10)

	queue := notifier.NewQueue()
	defer queue.Close()

	saga := NewRewardFlowSaga(store, rewardCatalog(t), nil, queue, nil, nil, nil,
		RewardFlowConfig{PopupDuration: 40 * time.Millisecond})
	defer saga.Close()

	first := achievement.Achievement{ID: 1, Code: "a", Title: "A", Reward: 1}
	second := achievement.Achievement{ID: 2, Code: "b", Title: "B", Reward: 1}

	saga.showPopup(first)
	saga.showPopup(second)

	popup := saga.CurrentPopup()
	require.NotNil(t, popup)
	assert.Equal(t, "b", popup.Achievement.Code)

	// Слот очищается сам по таймеру
	assert.Eventually(t, func() bool {
		return saga.CurrentPopup() == nil
	}, time.Second, 10*time.Millisecond)
}

func TestRewardFlow_DismissPopup(t *testing.T) {
	store := memory.NewRecordStore()
	seed(t, store, 10)

	queue := notifier.NewQueue()
	defer queue.Close()

	saga := NewRewardFlowSaga(store, rewardCatalog(t), nil, queue, nil, nil, nil, DefaultRewardFlowConfig())
	defer saga.Close()

	saga.showPopup(achievement.Achievement{ID: 1, Code: "a", Title: "A", Reward: 1})
	saga.DismissPopup()
	assert.Nil(t, saga.CurrentPopup())

	// Повторное закрытие безопасно
	saga.DismissPopup()
}

func TestRewardFlow_NoRecordIsQuietOnPrime(t *testing.T) {
	saga := NewRewardFlowSaga(memory.NewRecordStore(), rewardCatalog(t), nil,
		notifier.NewQueue(), nil, nil, nil, DefaultRewardFlowConfig())
	defer saga.Close()

	require.NoError(t, saga.Prime(context.Background()))
}

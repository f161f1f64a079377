package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-reward-hub/internal/application/command"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/query"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/saga"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/viewstate"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/messaging"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/notifier"
	"github.com/bilim-hub/bilim-reward-hub/internal/infrastructure/persistence/memory"

	"golang.org/x/text/language"
)

// testEnv собирает полный стек с хранилищами в памяти.
type testEnv struct {
	server *Server
	store  *memory.RecordStore
	toasts *notifier.Queue
	cart   *command.Cart
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewRecordStore()
	themes := memory.NewThemeStore()
	ledger := memory.NewAuditLedger()
	toasts := notifier.NewQueue()
	t.Cleanup(toasts.Close)

	cat, err := catalog.NewCatalog([]catalog.Product{
		{ID: "pen", Name: "Ручка", Price: 15, Category: catalog.CategoryStationery, Rarity: catalog.RarityCommon},
		{ID: "sticker", Name: "Стикерпак", Price: 5, Category: catalog.CategoryMerch, Rarity: catalog.RarityCommon},
	})
	require.NoError(t, err)

	offers, err := catalog.NewOfferBoard([]catalog.SpecialOffer{
		{ID: "combo", Title: "Комбо", OriginalPrice: 50, DiscountedPrice: 30,
			ExpiresAt: time.Now().Add(time.Hour)},
		{ID: "gone", Title: "Истёкшая", OriginalPrice: 50, DiscountedPrice: 20,
			ExpiresAt: time.Now().Add(-time.Hour)},
	})
	require.NoError(t, err)

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	t.Cleanup(func() { _ = bus.Close() })

	rewardFlow := saga.NewRewardFlowSaga(store, cat, ledger, toasts, bus, nil, nil,
		saga.DefaultRewardFlowConfig())
	t.Cleanup(rewardFlow.Close)
	require.NoError(t, rewardFlow.Attach(bus))

	cart := command.NewCart()
	tracker := viewstate.NewTracker(themes, bus, nil)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0 // не мешает тестам

	server := NewServer(cfg, Dependencies{
		BuyProduct:        command.NewBuyProductHandler(store, cat, ledger, toasts, bus, nil, nil),
		Checkout:          command.NewCheckoutHandler(store, ledger, toasts, bus, nil, nil),
		ClaimOffer:        command.NewClaimOfferHandler(store, offers, ledger, toasts, bus, nil, nil),
		ConvertExperience: command.NewConvertExperienceHandler(store, ledger, toasts, bus, nil, nil),
		Logout:            command.NewLogoutHandler(store, nil),
		GetStorefront:     query.NewGetStorefrontHandler(store, cat, offers, catalog.NewFilterEngine(language.Russian)),
		GetProgress:       query.NewGetProgressHandler(store, ledger, rewardFlow),
		Cart:              cart,
		Catalog:           cat,
		Onboarding:        saga.NewOnboardingSaga(store, toasts, nil, saga.DefaultOnboardingConfig()),
		RewardFlow:        rewardFlow,
		Toasts:            toasts,
		Tracker:           tracker,
	})

	return &testEnv{server: server, store: store, toasts: toasts, cart: cart}
}

func (e *testEnv) seed(t *testing.T, balance int) {
	t.Helper()

	rec, err := student.NewRecord(student.NewRecordParams{
		ID: "student-1", Name: "Айдана", Username: "aidana", InitialBalance: balance,
	})
	require.NoError(t, err)
	e.store.Seed(rec)
}

// do выполняет запрос и разбирает стандартный конверт ответа.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)

	var envelope JSONResponse
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	}
	return rr, envelope
}

func dataMap(t *testing.T, envelope JSONResponse) map[string]interface{} {
	t.Helper()
	m, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok, "response data is not an object")
	return m
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STOREFRONT
// ══════════════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rr, envelope := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, envelope.Success)
	assert.Equal(t, "healthy", dataMap(t, envelope)["status"])
}

func TestStorefront_WithoutRecord(t *testing.T) {
	env := newTestEnv(t)

	rr, envelope := env.do(t, http.MethodGet, "/api/v1/storefront", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	data := dataMap(t, envelope)
	assert.Equal(t, false, data["has_record"])
	assert.Len(t, data["products"], 2)
	// Истёкшее предложение не показывается
	assert.Len(t, data["offers"], 1)
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

func TestSession_ProvisionAndLogout(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{"student_id": "s1", "name": "Айдана", "username": "aidana"}

	rr, envelope := env.do(t, http.MethodPost, "/api/v1/session", body)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, true, dataMap(t, envelope)["provisioned"])

	// Повторный вход использует существующую запись
	rr, envelope = env.do(t, http.MethodPost, "/api/v1/session", body)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, dataMap(t, envelope)["provisioned"])

	rr, _ = env.do(t, http.MethodDelete, "/api/v1/session", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr, envelope = env.do(t, http.MethodGet, "/api/v1/progress", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "no_record", envelope.Error.Code)
}

func TestSession_InvalidInput(t *testing.T) {
	env := newTestEnv(t)

	rr, envelope := env.do(t, http.MethodPost, "/api/v1/session", map[string]string{"name": "Без ID"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "invalid_input", envelope.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// PURCHASES
// ══════════════════════════════════════════════════════════════════════════════

func TestBuyProduct_API(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 20)

	rr, envelope := env.do(t, http.MethodPost, "/api/v1/purchases", map[string]string{"product_id": "pen"})
	require.Equal(t, http.StatusOK, rr.Code)

	data := dataMap(t, envelope)
	assert.Equal(t, "pen", data["product_id"])
	// Награда за достижение начисляется отдельной проводкой,
	// в ответ команды входит только баланс после списания.
	assert.Equal(t, float64(5), data["new_balance"])
}

func TestBuyProduct_API_Insufficient(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 3)

	rr, envelope := env.do(t, http.MethodPost, "/api/v1/purchases", map[string]string{"product_id": "pen"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "insufficient_funds", envelope.Error.Code)
}

func TestBuyProduct_API_Unknown(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 20)

	rr, envelope := env.do(t, http.MethodPost, "/api/v1/purchases", map[string]string{"product_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "product_not_found", envelope.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// CART
// ══════════════════════════════════════════════════════════════════════════════

func TestCart_API(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 100)

	// Пустая корзина не оформляется
	rr, envelope := env.do(t, http.MethodPost, "/api/v1/cart/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "empty_cart", envelope.Error.Code)

	rr, envelope = env.do(t, http.MethodPost, "/api/v1/cart/items", map[string]string{"product_id": "pen"})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, float64(1), dataMap(t, envelope)["count"])

	rr, _ = env.do(t, http.MethodPost, "/api/v1/cart/items", map[string]string{"product_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, envelope = env.do(t, http.MethodPost, "/api/v1/cart/items", map[string]string{"product_id": "sticker"})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, float64(20), dataMap(t, envelope)["total"])

	rr, envelope = env.do(t, http.MethodPost, "/api/v1/cart/checkout", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	data := dataMap(t, envelope)
	assert.Equal(t, float64(20), data["total"])
	assert.Equal(t, float64(80), data["new_balance"])

	// Корзина очищена после успеха
	rr, envelope = env.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(0), dataMap(t, envelope)["count"])
}

func TestCart_API_RemoveAbsentIsNoop(t *testing.T) {
	env := newTestEnv(t)

	rr, envelope := env.do(t, http.MethodDelete, "/api/v1/cart/items/ghost", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(0), dataMap(t, envelope)["count"])
}

// ══════════════════════════════════════════════════════════════════════════════
// OFFERS & CONVERSION
// ══════════════════════════════════════════════════════════════════════════════

func TestClaimOffer_API(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 100)

	rr, envelope := env.do(t, http.MethodPost, "/api/v1/offers/gone/claim", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "offer_expired", envelope.Error.Code)

	rr, envelope = env.do(t, http.MethodPost, "/api/v1/offers/ghost/claim", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, envelope = env.do(t, http.MethodPost, "/api/v1/offers/combo/claim", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	data := dataMap(t, envelope)
	assert.Equal(t, float64(30), data["paid"])
	assert.Equal(t, float64(70), data["new_balance"])
}

func TestConvertExperience_API_BelowRate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 10)

	rr, envelope := env.do(t, http.MethodPost, "/api/v1/experience/convert", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "insufficient_experience", envelope.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// TOASTS & POPUP
// ══════════════════════════════════════════════════════════════════════════════

func TestToasts_API(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 20)

	_, _ = env.do(t, http.MethodPost, "/api/v1/purchases", map[string]string{"product_id": "pen"})

	rr, envelope := env.do(t, http.MethodGet, "/api/v1/toasts", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	toasts, ok := dataMap(t, envelope)["toasts"].([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, toasts)

	first, ok := toasts[0].(map[string]interface{})
	require.True(t, ok)
	id := int64(first["id"].(float64))

	rr, _ = env.do(t, http.MethodDelete, "/api/v1/toasts/"+strconv.FormatInt(id, 10), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr, _ = env.do(t, http.MethodDelete, "/api/v1/toasts/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPopup_API(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, 20)

	rr, envelope := env.do(t, http.MethodGet, "/api/v1/popup", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "no_popup", envelope.Error.Code)

	// Первая покупка открывает достижение и показывает окно
	_, _ = env.do(t, http.MethodPost, "/api/v1/purchases", map[string]string{"product_id": "pen"})

	rr, envelope = env.do(t, http.MethodGet, "/api/v1/popup", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "first_purchase", dataMap(t, envelope)["code"])

	rr, _ = env.do(t, http.MethodDelete, "/api/v1/popup", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr, _ = env.do(t, http.MethodGet, "/api/v1/popup", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEW STATE
// ══════════════════════════════════════════════════════════════════════════════

func TestViewState_API(t *testing.T) {
	env := newTestEnv(t)

	rr, envelope := env.do(t, http.MethodGet, "/api/v1/viewstate", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	data := dataMap(t, envelope)
	assert.Equal(t, "light", data["theme"])
	assert.Equal(t, "desktop", data["device"])

	rr, envelope = env.do(t, http.MethodPut, "/api/v1/viewstate/theme", map[string]string{"theme": "dark"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "dark", dataMap(t, envelope)["theme"])

	rr, _ = env.do(t, http.MethodPut, "/api/v1/viewstate/theme", map[string]string{"theme": "sepia"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, envelope = env.do(t, http.MethodPut, "/api/v1/viewstate/viewport", map[string]int{"width": 390})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "mobile", dataMap(t, envelope)["device"])

	rr, envelope = env.do(t, http.MethodPut, "/api/v1/viewstate/viewport", map[string]int{"width": 768})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "desktop", dataMap(t, envelope)["device"])
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t)

	limited := NewServer(Config{
		Host: "127.0.0.1", Port: 8080,
		RateLimitPerMinute: 2,
	}, env.server.deps)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		limited.Handler().ServeHTTP(rr, req)
		last = rr.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

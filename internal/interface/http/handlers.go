package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/bilim-hub/bilim-reward-hub/internal/application/command"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/query"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/saga"
	"github.com/bilim-hub/bilim-reward-hub/internal/application/viewstate"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/catalog"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/student"
	"github.com/bilim-hub/bilim-reward-hub/internal/domain/toast"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, student.ErrRecordNotFound):
		writeJSONError(w, http.StatusNotFound, "no_record", "No student record in this session")
	case errors.Is(err, student.ErrInsufficientFunds):
		writeJSONError(w, http.StatusConflict, "insufficient_funds", err.Error())
	case errors.Is(err, student.ErrInsufficientExperience):
		writeJSONError(w, http.StatusConflict, "insufficient_experience", err.Error())
	case errors.Is(err, student.ErrStaleRecord):
		writeJSONError(w, http.StatusConflict, "stale_record", "Record was modified concurrently, retry")
	case errors.Is(err, catalog.ErrProductNotFound):
		writeJSONError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, catalog.ErrOfferNotFound):
		writeJSONError(w, http.StatusNotFound, "offer_not_found", err.Error())
	case errors.Is(err, catalog.ErrOfferExpired):
		writeJSONError(w, http.StatusConflict, "offer_expired", err.Error())
	case errors.Is(err, command.ErrEmptyCart):
		writeJSONError(w, http.StatusBadRequest, "empty_cart", "Cart is empty")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"uptime":    s.Uptime().String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRoot handles GET /.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Endpoint not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "bilim-reward-hub",
		"version": "1.0.0",
		"endpoints": []string{
			"GET /health",
			"POST /api/v1/session",
			"DELETE /api/v1/session",
			"GET /api/v1/storefront",
			"GET /api/v1/progress",
			"POST /api/v1/purchases",
			"GET /api/v1/cart",
			"POST /api/v1/cart/items",
			"DELETE /api/v1/cart/items/{id}",
			"POST /api/v1/cart/checkout",
			"POST /api/v1/offers/{id}/claim",
			"POST /api/v1/experience/convert",
			"GET /api/v1/toasts",
			"DELETE /api/v1/toasts/{id}",
			"GET /api/v1/popup",
			"DELETE /api/v1/popup",
			"GET /api/v1/viewstate",
			"PUT /api/v1/viewstate/theme",
			"PUT /api/v1/viewstate/viewport",
		},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION
// ══════════════════════════════════════════════════════════════════════════════

type startSessionRequest struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
}

type sessionResponse struct {
	StudentID   string `json:"student_id"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	Balance     int    `json:"balance"`
	Level       int    `json:"level"`
	Streak      int    `json:"streak"`
	Provisioned bool   `json:"provisioned"`
}

// handleStartSession handles POST /api/v1/session.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.Onboarding.Execute(r.Context(), saga.OnboardingInput{
		StudentID: req.StudentID,
		Name:      req.Name,
		Username:  req.Username,
	})
	if err != nil {
		if errors.Is(err, saga.ErrInvalidOnboardingInput) {
			writeJSONError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if result.Provisioned {
		status = http.StatusCreated
	}
	rec := result.Record
	writeJSON(w, status, sessionResponse{
		StudentID:   rec.ID,
		Name:        rec.Name,
		Username:    rec.Username,
		Balance:     int(rec.Aqcha),
		Level:       int(rec.Level()),
		Streak:      rec.Streak,
		Provisioned: result.Provisioned,
	})
}

// handleLogout handles DELETE /api/v1/session.
// The cart is session-local, so it is dropped together with the record.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Logout.Handle(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	s.deps.Cart.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// STOREFRONT & PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStorefront handles GET /api/v1/storefront.
func (s *Server) handleGetStorefront(w http.ResponseWriter, r *http.Request) {
	q := query.GetStorefrontQuery{
		Category: getQueryParam(r, "category", ""),
		Search:   getQueryParam(r, "search", ""),
		Sort:     getQueryParam(r, "sort", ""),
	}

	result, err := s.deps.GetStorefront.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetProgress handles GET /api/v1/progress.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	q := query.GetProgressQuery{
		HistoryLimit: getQueryParamInt(r, "history_limit", 0),
	}

	result, err := s.deps.GetProgress.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTIONS
// ══════════════════════════════════════════════════════════════════════════════

type buyProductRequest struct {
	ProductID string `json:"product_id"`
}

// handleBuyProduct handles POST /api/v1/purchases.
func (s *Server) handleBuyProduct(w http.ResponseWriter, r *http.Request) {
	var req buyProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", "product_id is required")
		return
	}

	result, err := s.deps.BuyProduct.Handle(r.Context(), command.BuyProductCommand{ProductID: req.ProductID})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product_id":  result.Product.ID,
		"price":       result.Product.Price,
		"new_balance": result.NewBalance,
		"leveled_up":  result.LeveledUp,
	})
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
}

type cartItemDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int    `json:"price"`
}

type cartDTO struct {
	Items []cartItemDTO `json:"items"`
	Total int           `json:"total"`
	Count int           `json:"count"`
}

func (s *Server) cartSnapshot() cartDTO {
	items := s.deps.Cart.Items()
	dto := cartDTO{Items: make([]cartItemDTO, 0, len(items))}
	for _, p := range items {
		dto.Items = append(dto.Items, cartItemDTO{ProductID: p.ID, Name: p.Name, Price: p.Price})
		dto.Total += p.Price
	}
	dto.Count = len(items)
	return dto
}

// handleGetCart handles GET /api/v1/cart.
func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cartSnapshot())
}

// handleAddCartItem handles POST /api/v1/cart/items.
func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", "product_id is required")
		return
	}

	product, err := s.deps.Catalog.Product(req.ProductID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.deps.Cart.Add(product)
	writeJSON(w, http.StatusCreated, s.cartSnapshot())
}

// handleRemoveCartItem handles DELETE /api/v1/cart/items/{id}.
// Removing a product that is not in the cart is not an error.
func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	s.deps.Cart.Remove(r.PathValue("id"))
	writeJSON(w, http.StatusOK, s.cartSnapshot())
}

// handleCheckout handles POST /api/v1/cart/checkout.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Checkout.Handle(r.Context(), command.CheckoutCommand{Cart: s.deps.Cart})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ids := make([]string, 0, len(result.Items))
	for _, p := range result.Items {
		ids = append(ids, p.ID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"product_ids": ids,
		"total":       result.Total,
		"new_balance": result.NewBalance,
		"leveled_up":  result.LeveledUp,
	})
}

// handleClaimOffer handles POST /api/v1/offers/{id}/claim.
func (s *Server) handleClaimOffer(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ClaimOffer.Handle(r.Context(), command.ClaimOfferCommand{OfferID: r.PathValue("id")})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"offer_id":    result.Offer.ID,
		"paid":        result.Offer.DiscountedPrice,
		"new_balance": result.NewBalance,
	})
}

// handleConvertExperience handles POST /api/v1/experience/convert.
func (s *Server) handleConvertExperience(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ConvertExperience.Handle(r.Context(), command.ConvertExperienceCommand{})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"converted_xp": result.ConvertedXP,
		"credited":     result.Credited,
		"new_balance":  result.NewBalance,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TOASTS & POPUP
// ══════════════════════════════════════════════════════════════════════════════

type toastDTO struct {
	ID        int64  `json:"id"`
	Severity  string `json:"severity"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	DurationS int    `json:"duration_seconds"`
	CreatedAt string `json:"created_at"`
}

// handleGetToasts handles GET /api/v1/toasts.
func (s *Server) handleGetToasts(w http.ResponseWriter, r *http.Request) {
	visible := s.deps.Toasts.Visible()
	out := make([]toastDTO, 0, len(visible))
	for _, t := range visible {
		out = append(out, toastDTO{
			ID:        int64(t.ID),
			Severity:  string(t.Severity),
			Title:     t.Title,
			Message:   t.Message,
			DurationS: int(t.Duration.Seconds()),
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"toasts": out})
}

// handleDismissToast handles DELETE /api/v1/toasts/{id}.
func (s *Server) handleDismissToast(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_input", "Toast id must be an integer")
		return
	}
	s.deps.Toasts.Dismiss(toast.ID(id))
	w.WriteHeader(http.StatusNoContent)
}

type popupDTO struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Reward      int    `json:"reward"`
	ShownAt     string `json:"shown_at"`
}

// handleGetPopup handles GET /api/v1/popup.
func (s *Server) handleGetPopup(w http.ResponseWriter, r *http.Request) {
	popup := s.deps.RewardFlow.CurrentPopup()
	if popup == nil {
		writeJSONError(w, http.StatusNotFound, "no_popup", "No achievement popup is shown")
		return
	}
	writeJSON(w, http.StatusOK, popupDTO{
		Code:        popup.Achievement.Code,
		Title:       popup.Achievement.Title,
		Description: popup.Achievement.Description,
		Reward:      popup.Achievement.Reward,
		ShownAt:     popup.ShownAt.UTC().Format(time.RFC3339),
	})
}

// handleDismissPopup handles DELETE /api/v1/popup.
func (s *Server) handleDismissPopup(w http.ResponseWriter, r *http.Request) {
	s.deps.RewardFlow.DismissPopup()
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEW STATE
// ══════════════════════════════════════════════════════════════════════════════

// handleGetViewState handles GET /api/v1/viewstate.
func (s *Server) handleGetViewState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"theme":  s.deps.Tracker.Theme(),
		"device": string(s.deps.Tracker.Device()),
	})
}

type setThemeRequest struct {
	Theme string `json:"theme"`
}

// handleSetTheme handles PUT /api/v1/viewstate/theme.
func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req setThemeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.deps.Tracker.SetTheme(r.Context(), req.Theme); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_theme", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"theme": s.deps.Tracker.Theme()})
}

type reportViewportRequest struct {
	Width int `json:"width"`
}

// handleReportViewport handles PUT /api/v1/viewstate/viewport.
func (s *Server) handleReportViewport(w http.ResponseWriter, r *http.Request) {
	var req reportViewportRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.deps.Tracker.ReportViewport(r.Context(), req.Width); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_viewport", err.Error())
		return
	}

	// Кэш трекера обновит фоновая сверка; в ответе ширина
	// классифицируется сразу, чтобы клиент не ждал цикла опроса.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"device": string(viewstate.ClassifyWidth(req.Width)),
	})
}

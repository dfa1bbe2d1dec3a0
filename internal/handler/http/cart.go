package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
)

// CartHandler handles the authenticated user's cart.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{service: svc, logger: logger}
}

// AddToCartRequest is the JSON request body for adding a product.
type AddToCartRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1,lte=99"`
}

// Get handles GET /api/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	cart, err := h.service.Get(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok("").with("cart", cart))
}

// Add handles POST /api/cart/add
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	cart, err := h.service.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok("Product added to cart").with("cart", cart))
}

// Remove handles DELETE /api/cart/remove/{productId}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	productID, valid := httputil.ParseID(w, r, chi.URLParam(r, "productId"), service.MsgProductNotInCart)
	if !valid {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	cart, err := h.service.RemoveItem(r.Context(), userID, productID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok("Product removed from cart").with("cart", cart))
}

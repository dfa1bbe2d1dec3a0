package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/pagination"
)

// OrderHandler handles order placement and tracking.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: svc, logger: logger}
}

// PlaceOrderRequest is the JSON request body for placing an order. A blank
// address is rejected by the service with its own message.
type PlaceOrderRequest struct {
	ShippingAddress string `json:"shippingAddress" validate:"max=500"`
}

// UpdateStatusRequest is the JSON request body for an admin status change.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Place handles POST /api/order/place
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	order, err := h.service.PlaceOrder(r.Context(), userID, req.ShippingAddress)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ok("Order placed successfully").with("order", order))
}

// List handles GET /api/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.OptionalFromRequest(r)
	orders, total, err := h.service.ListOrders(r.Context(), middleware.UserIDFromContext(r.Context()), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	body := ok("").with("orders", orders)
	if meta := pagination.NewMeta(total, page); meta != nil {
		body = body.with("pagination", meta)
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// Track handles GET /api/order/track/{id}
func (h *OrderHandler) Track(w http.ResponseWriter, r *http.Request) {
	id, valid := httputil.ParseID(w, r, chi.URLParam(r, "id"), service.MsgNoOrder)
	if !valid {
		return
	}

	order, err := h.service.TrackOrder(r.Context(), middleware.UserIDFromContext(r.Context()), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok("Order found").with("order", order))
}

// Cancel handles PUT /api/order/cancel/{id}
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, valid := httputil.ParseID(w, r, chi.URLParam(r, "id"), service.MsgNoOrder)
	if !valid {
		return
	}

	order, err := h.service.CancelOrder(r.Context(), middleware.UserIDFromContext(r.Context()), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok("Order cancelled successfully").with("order", order))
}

// UpdateStatus handles PUT /api/order/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, valid := httputil.ParseID(w, r, chi.URLParam(r, "id"), service.MsgNoOrder)
	if !valid {
		return
	}

	var req UpdateStatusRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id.String(), domain.OrderStatus(req.Status))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok("Order status updated").with("order", order))
}

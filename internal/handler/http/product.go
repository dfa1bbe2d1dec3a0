package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
)

// ProductHandler handles catalog endpoints.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: logger}
}

// ProductRequest is the JSON request body for creating or replacing a
// product. Prices may be sent as JSON numbers or strings.
type ProductRequest struct {
	Name        string              `json:"name" validate:"required,notblank,max=200"`
	Description string              `json:"description" validate:"max=5000"`
	Category    string              `json:"category" validate:"required,notblank,max=100"`
	Price       decimal.Decimal     `json:"price" validate:"money"`
	SalePrice   decimal.NullDecimal `json:"salePrice"`
	Stock       int                 `json:"stock" validate:"gte=0"`
}

func (req ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		SalePrice:   req.SalePrice,
		Stock:       req.Stock,
	}
}

// productList adds pagination metadata when the client asked for a page.
func productList(products []domain.Product, total int, page pagination.Params) envelope {
	e := ok("").with("products", products)
	if meta := pagination.NewMeta(total, page); meta != nil {
		e = e.with("pagination", meta)
	}
	return e
}

// Create handles POST /api/product
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	product, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, ok("Product created successfully").with("product", product))
}

// List handles GET /api/product
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.OptionalFromRequest(r)
	products, total, err := h.service.Search(r.Context(), domain.ProductFilter{}, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, productList(products, total, page))
}

// Search handles GET /api/product/search
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Name:     strings.TrimSpace(q.Get("name")),
		Category: strings.TrimSpace(q.Get("category")),
		SortBy:   q.Get("sortBy"),
		Desc:     strings.EqualFold(q.Get("order"), "desc"),
	}

	var valid bool
	if filter.MinPrice, valid = priceParam(w, r, "minPrice"); !valid {
		return
	}
	if filter.MaxPrice, valid = priceParam(w, r, "maxPrice"); !valid {
		return
	}

	page := pagination.OptionalFromRequest(r)
	products, total, err := h.service.Search(r.Context(), filter, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, productList(products, total, page))
}

func priceParam(w http.ResponseWriter, r *http.Request, name string) (decimal.NullDecimal, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return decimal.NullDecimal{}, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		httputil.WriteMessage(w, r, http.StatusBadRequest, "INVALID_INPUT", name+" must be a non-negative number")
		return decimal.NullDecimal{}, false
	}
	return decimal.NewNullDecimal(d), true
}

// Get handles GET /api/product/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, valid := httputil.ParseID(w, r, chi.URLParam(r, "id"), service.MsgProductNotFound)
	if !valid {
		return
	}

	product, err := h.service.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok("").with("product", product))
}

// Update handles PUT /api/product/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, valid := httputil.ParseID(w, r, chi.URLParam(r, "id"), service.MsgProductNotFound)
	if !valid {
		return
	}

	var req ProductRequest
	if err := decode(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	product, err := h.service.Update(r.Context(), id.String(), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok("Product updated successfully").with("product", product))
}

// Delete handles DELETE /api/product/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, valid := httputil.ParseID(w, r, chi.URLParam(r, "id"), service.MsgProductNotFound)
	if !valid {
		return
	}

	if err := h.service.Delete(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ok("Product deleted successfully"))
}

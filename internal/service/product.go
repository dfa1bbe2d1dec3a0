package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/slug"
)

// Client-facing catalog messages.
const (
	MsgProductNotFound  = "Product not found"
	MsgNoProductsFound  = "No products found"
	MsgSalePriceTooHigh = "salePrice must not exceed price"
	MsgSalePriceInvalid = "salePrice must not be negative"
)

// ProductService implements catalog management and search.
type ProductService struct {
	repo   repository.ProductRepository
	logger *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(repo repository.ProductRepository, logger *slog.Logger) *ProductService {
	return &ProductService{repo: repo, logger: logger}
}

// ProductInput holds the writable fields of a product.
type ProductInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	SalePrice   decimal.NullDecimal
	Stock       int
}

func (in ProductInput) validate() error {
	if in.SalePrice.Valid && in.SalePrice.Decimal.IsNegative() {
		return apperrors.InvalidInput(MsgSalePriceInvalid)
	}
	if in.SalePrice.Valid && in.SalePrice.Decimal.GreaterThan(in.Price) {
		return apperrors.InvalidInput(MsgSalePriceTooHigh)
	}
	return nil
}

// Create adds a product to the catalog.
func (s *ProductService) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	now := time.Now().UTC()
	p := &domain.Product{
		ID:          id.String(),
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug.Unique(in.Name, id),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		SalePrice:   in.SalePrice,
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", p.ID),
		slog.String("slug", p.Slug),
	)
	return p, nil
}

// Get returns one product.
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound(MsgProductNotFound)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// Update replaces the writable fields of a product. Renaming regenerates
// the slug.
func (s *ProductService) Update(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name != p.Name {
		if parsed, err := uuid.Parse(p.ID); err == nil {
			p.Slug = slug.Unique(name, parsed)
		}
	}
	p.Name = name
	p.Description = in.Description
	p.Category = strings.TrimSpace(in.Category)
	p.Price = in.Price
	p.SalePrice = in.SalePrice
	p.Stock = in.Stock

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound(MsgProductNotFound)
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", p.ID))
	return p, nil
}

// Delete removes a product from the catalog.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound(MsgProductNotFound)
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// Search lists products matching filter. An empty result is a NotFound so
// clients get the same "No products found" answer the catalog always gave.
func (s *ProductService) Search(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error) {
	if filter.SortBy != "" && !domain.IsValidProductSort(filter.SortBy) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("sortBy must be one of %s, %s, %s",
			domain.SortByName, domain.SortByPrice, domain.SortByCreatedAt))
	}
	if filter.MinPrice.Valid && filter.MaxPrice.Valid && filter.MinPrice.Decimal.GreaterThan(filter.MaxPrice.Decimal) {
		return nil, 0, apperrors.InvalidInput("minPrice must not exceed maxPrice")
	}

	products, total, err := s.repo.Search(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	if len(products) == 0 {
		return nil, 0, apperrors.NotFound(MsgNoProductsFound)
	}
	return products, total, nil
}

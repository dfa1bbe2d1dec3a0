package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry.
type Product struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Slug        string              `json:"slug"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Price       decimal.Decimal     `json:"price"`
	SalePrice   decimal.NullDecimal `json:"salePrice"`
	Stock       int                 `json:"stock"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// EffectivePrice is the price a buyer pays: the sale price when one is set,
// the list price otherwise.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// ProductFilter narrows a catalog search. Zero values mean "no constraint".
type ProductFilter struct {
	Name     string
	Category string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
	SortBy   string
	Desc     bool
}

// Sortable product columns.
const (
	SortByName      = "name"
	SortByPrice     = "price"
	SortByCreatedAt = "createdAt"
)

// IsValidProductSort reports whether field can be used to order search results.
func IsValidProductSort(field string) bool {
	switch field {
	case SortByName, SortByPrice, SortByCreatedAt:
		return true
	}
	return false
}

package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyName     = errors.New("product name must not be empty")
	ErrNegativeStock = errors.New("stock must not be negative")
	ErrInvalidPrice  = errors.New("price must be greater than 0")
	ErrPriceScale    = errors.New("price must have at most 2 decimal places")
)

// PriceScale matches the DECIMAL(12, 2) price columns.
const PriceScale = 2

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdTime"`
	UpdatedAt   time.Time       `json:"updatedTime"`
}

func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return validatePrice(p.Price)
}

func validatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return ErrInvalidPrice
	}
	if !price.Equal(price.Truncate(PriceScale)) {
		return ErrPriceScale
	}
	return nil
}

// ProductPatch carries a partial update. Nil fields keep their stored value;
// an empty patch only touches the update time.
type ProductPatch struct {
	Name        *string          `json:"name,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	Description *string          `json:"description,omitempty"`
}

func (p ProductPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrEmptyName
	}
	if p.Stock != nil && *p.Stock < 0 {
		return ErrNegativeStock
	}
	if p.Price != nil {
		return validatePrice(*p.Price)
	}
	return nil
}

func (p ProductPatch) ApplyTo(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
}

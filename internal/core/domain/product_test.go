package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name    string
		product Product
		want    error
	}{
		{"valid", Product{Name: "phone", Price: decimal.NewFromInt(1), Stock: 0}, nil},
		{"empty name", Product{Name: " ", Price: decimal.NewFromInt(1)}, ErrEmptyName},
		{"negative stock", Product{Name: "phone", Price: decimal.NewFromInt(1), Stock: -1}, ErrNegativeStock},
		{"zero price", Product{Name: "phone", Price: decimal.Zero}, ErrInvalidPrice},
		{"negative price", Product{Name: "phone", Price: decimal.NewFromInt(-3)}, ErrInvalidPrice},
		{"sub-cent price", Product{Name: "phone", Price: decimal.RequireFromString("0.004")}, ErrPriceScale},
		{"trailing zeros", Product{Name: "phone", Price: decimal.RequireFromString("19.900")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.product.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestProductPatch_ApplyOnlySetFields(t *testing.T) {
	p := Product{Name: "phone", Price: decimal.NewFromInt(100), Stock: 10, Description: "desc"}
	stock := 5

	patch := ProductPatch{Stock: &stock}
	if err := patch.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	patch.ApplyTo(&p)

	if p.Stock != 5 {
		t.Errorf("expected stock 5, got %d", p.Stock)
	}
	if p.Name != "phone" || p.Description != "desc" || !p.Price.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unset fields changed: %+v", p)
	}
}

func TestProductPatch_Validate(t *testing.T) {
	neg := -1
	zero := decimal.Zero
	empty := ""

	fine := decimal.RequireFromString("1.005")

	if err := (ProductPatch{}).Validate(); err != nil {
		t.Errorf("empty patch should be valid, got %v", err)
	}
	if err := (ProductPatch{Price: &fine}).Validate(); !errors.Is(err, ErrPriceScale) {
		t.Errorf("expected ErrPriceScale, got %v", err)
	}
	if err := (ProductPatch{Stock: &neg}).Validate(); !errors.Is(err, ErrNegativeStock) {
		t.Errorf("expected ErrNegativeStock, got %v", err)
	}
	if err := (ProductPatch{Price: &zero}).Validate(); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
	if err := (ProductPatch{Name: &empty}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

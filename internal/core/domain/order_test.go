package domain

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewOrderItem_Subtotal(t *testing.T) {
	item, err := NewOrderItem(1, 2, 3, decimal.RequireFromString("19.99"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !item.Subtotal.Equal(decimal.RequireFromString("59.97")) {
		t.Errorf("expected subtotal 59.97, got %s", item.Subtotal)
	}
}

func TestNewOrderItem_InvalidQuantity(t *testing.T) {
	for _, qty := range []int{0, -1} {
		_, err := NewOrderItem(1, 2, qty, decimal.NewFromInt(10))
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("qty %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
}

func TestOrder_AddItemAccumulatesWithoutRounding(t *testing.T) {
	order := NewPendingOrder("ORD1", 7, time.Now())

	// 0.1 + 0.2 must be exactly 0.3
	a, _ := NewOrderItem(0, 1, 1, decimal.RequireFromString("0.1"))
	b, _ := NewOrderItem(0, 2, 1, decimal.RequireFromString("0.2"))
	order.AddItem(a)
	order.AddItem(b)

	if !order.TotalAmount.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("expected total 0.3, got %s", order.TotalAmount)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	if order.Items[0].ProductID != 1 || order.Items[1].ProductID != 2 {
		t.Error("items must keep insertion order")
	}

	order.TotalAmount = decimal.Zero
	if got := order.RecomputeTotal(); !got.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("expected recomputed total 0.3, got %s", got)
	}
}

func TestNewPendingOrder(t *testing.T) {
	now := time.Now()
	order := NewPendingOrder("ORD1", 7, now)

	if !order.IsPending() {
		t.Errorf("expected pending status, got %s", order.Status)
	}
	if !order.TotalAmount.IsZero() {
		t.Errorf("expected zero total, got %s", order.TotalAmount)
	}
}

func TestGenerateOrderNumber(t *testing.T) {
	now := time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC)
	got := GenerateOrderNumber(now, "AB12CD34")

	if got != "ORD20240305070809AB12CD34" {
		t.Errorf("unexpected order number %s", got)
	}
	if !regexp.MustCompile(`^ORD\d{14}[0-9A-Z]{8}$`).MatchString(got) {
		t.Errorf("order number %s does not match format", got)
	}
}

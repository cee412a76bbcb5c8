package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

const orderNumberPrefix = "ORD"

var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

type Order struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	UserID      int64           `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"createdTime"`
	UpdatedAt   time.Time       `json:"updatedTime"`
	Items       []OrderItem     `json:"orderItems"`
}

type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Product   *ProductRef     `json:"product,omitempty"`
}

// ProductRef is the denormalized product view attached to items on read paths.
type ProductRef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type PurchaseItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// GenerateOrderNumber formats ORD + yyyyMMddHHmmss + an 8 char suffix.
func GenerateOrderNumber(now time.Time, suffix string) string {
	return orderNumberPrefix + now.Format("20060102150405") + suffix
}

func NewPendingOrder(orderNumber string, userID int64, now time.Time) *Order {
	return &Order{
		OrderNumber: orderNumber,
		UserID:      userID,
		TotalAmount: decimal.Zero,
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewOrderItem snapshots price and computes subtotal = price * quantity.
func NewOrderItem(orderID, productID int64, quantity int, price decimal.Decimal) (OrderItem, error) {
	if quantity <= 0 {
		return OrderItem{}, ErrInvalidQuantity
	}
	return OrderItem{
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
		Subtotal:  price.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

func (o *Order) AddItem(item OrderItem) {
	o.Items = append(o.Items, item)
	o.TotalAmount = o.TotalAmount.Add(item.Subtotal)
}

func (o *Order) RecomputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal)
	}
	o.TotalAmount = total
	return total
}

func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"
)

type OrderEvent struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []PurchaseItem  `json:"items,omitempty"`
}

func NewOrderEvent(eventID, eventType string, order *Order, at time.Time) OrderEvent {
	items := make([]PurchaseItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, PurchaseItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return OrderEvent{
		EventID:     eventID,
		EventType:   eventType,
		OccurredAt:  at.UTC(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       items,
	}
}

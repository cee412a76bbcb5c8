package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/hot-product/internal/core/domain"
	"github.com/rl1809/hot-product/internal/metrics"
	"github.com/rl1809/hot-product/internal/port"
)

// order_number carries a unique index; a collision regenerates the number
const maxOrderNumberAttempts = 3

type OrderService struct {
	store   port.Store
	cache   *HotProductCache
	events  port.EventPublisher
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	suffix  func() string
}

func NewOrderService(store port.Store, cache *HotProductCache, events port.EventPublisher, logger zerolog.Logger, m *metrics.Metrics) *OrderService {
	if m == nil {
		m = metrics.Nop()
	}
	return &OrderService{
		store:   store,
		cache:   cache,
		events:  events,
		log:     logger.With().Str("component", "order_service").Logger(),
		metrics: m,
		now:     time.Now,
		suffix:  randomSuffix,
	}
}

// CreateOrder reserves stock for every item and persists the order in one
// transaction. Any failing item aborts the whole order.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, items []domain.PurchaseItem) (*domain.Order, error) {
	if err := validatePurchase(userID, items); err != nil {
		s.metrics.OrdersRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var (
		order *domain.Order
		err   error
	)
	for attempt := 1; ; attempt++ {
		order, err = s.placeOrder(ctx, userID, items)
		if !errors.Is(err, port.ErrDuplicateKey) || attempt == maxOrderNumberAttempts {
			break
		}
		s.log.Warn().Int("attempt", attempt).Msg("order number collision, regenerating")
	}
	if err != nil {
		s.metrics.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	s.metrics.OrdersCreated.Inc()
	s.log.Info().
		Int64("order_id", order.ID).
		Str("order_number", order.OrderNumber).
		Int64("user_id", userID).
		Str("total", order.TotalAmount.String()).
		Msg("order created")

	s.afterStockChange(ctx, order.Items)
	s.publish(ctx, domain.EventOrderCreated, order)
	return order, nil
}

func (s *OrderService) placeOrder(ctx context.Context, userID int64, items []domain.PurchaseItem) (*domain.Order, error) {
	now := s.now()
	order := domain.NewPendingOrder(domain.GenerateOrderNumber(now, s.suffix()), userID, now)

	err := s.store.InTx(ctx, func(tx port.Store) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, it := range items {
			item, err := s.reserve(ctx, tx, order.ID, it)
			if err != nil {
				return err
			}
			if err := tx.InsertOrderItem(ctx, &item); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			order.AddItem(item)
		}

		// persist the sum over the inserted lines
		if err := tx.UpdateOrderTotal(ctx, order.ID, order.RecomputeTotal()); err != nil {
			return fmt.Errorf("update order total: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// reserve deducts stock for one line and snapshots the live unit price.
// The stock read is a fast path only; the conditional decrement is the guard.
func (s *OrderService) reserve(ctx context.Context, tx port.Store, orderID int64, it domain.PurchaseItem) (domain.OrderItem, error) {
	stock, err := tx.GetStock(ctx, it.ProductID)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("get stock for product %d: %w", it.ProductID, err)
	}
	if stock == nil || *stock < it.Quantity {
		return domain.OrderItem{}, fmt.Errorf("%w: product %d", ErrInsufficientStock, it.ProductID)
	}

	rows, err := tx.DecrementStock(ctx, it.ProductID, it.Quantity)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("decrement stock for product %d: %w", it.ProductID, err)
	}
	if rows == 0 {
		return domain.OrderItem{}, fmt.Errorf("%w: product %d deduction failed", ErrInsufficientStock, it.ProductID)
	}

	product, err := tx.FindProductByID(ctx, it.ProductID)
	if err != nil {
		return domain.OrderItem{}, fmt.Errorf("find product %d: %w", it.ProductID, err)
	}
	if product == nil {
		return domain.OrderItem{}, fmt.Errorf("%w: product %d", ErrNotFound, it.ProductID)
	}

	item, err := domain.NewOrderItem(orderID, it.ProductID, it.Quantity, product.Price)
	if err != nil {
		return domain.OrderItem{}, invalidArgument(err)
	}
	return item, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.store.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", orderID, err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	return order, nil
}

func (s *OrderService) GetOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	orders, err := s.store.FindOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// CancelOrder restores stock and marks a PENDING order CANCELLED in one
// transaction. It reports false without error when the order is missing or
// no longer pending.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) (bool, error) {
	var cancelled *domain.Order

	err := s.store.InTx(ctx, func(tx port.Store) error {
		order, err := tx.FindOrderByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("find order %d: %w", orderID, err)
		}
		if order == nil || !order.IsPending() {
			return nil
		}

		// conditional transition: a concurrent cancel that already won leaves 0 rows
		rows, err := tx.UpdateOrderStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusCancelled)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if rows == 0 {
			return nil
		}

		items, err := tx.FindItemsByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("find order items: %w", err)
		}
		for _, it := range items {
			if _, err := tx.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return fmt.Errorf("restore stock for product %d: %w", it.ProductID, err)
			}
		}

		order.Status = domain.OrderStatusCancelled
		order.Items = items
		cancelled = order
		return nil
	})
	if err != nil {
		return false, err
	}
	if cancelled == nil {
		s.log.Debug().Int64("order_id", orderID).Msg("order not cancellable")
		return false, nil
	}

	s.metrics.OrdersCancelled.Inc()
	s.log.Info().Int64("order_id", orderID).Msg("order cancelled, stock restored")

	s.afterStockChange(ctx, cancelled.Items)
	s.publish(ctx, domain.EventOrderCancelled, cancelled)
	return true, nil
}

// afterStockChange drops cached hot products whose stock just moved.
func (s *OrderService) afterStockChange(ctx context.Context, items []domain.OrderItem) {
	for _, it := range items {
		if s.cache.IsHot(it.ProductID) {
			s.cache.Invalidate(ctx, it.ProductID)
		}
	}
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *domain.Order) {
	if s.events == nil {
		return
	}
	ev := domain.NewOrderEvent(uuid.NewString(), eventType, order, s.now())
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Error().Err(err).Int64("order_id", order.ID).Str("event_type", eventType).Msg("publish order event failed")
	}
}

func validatePurchase(userID int64, items []domain.PurchaseItem) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: items must not be empty", ErrInvalidArgument)
	}
	for _, it := range items {
		if it.ProductID <= 0 {
			return fmt.Errorf("%w: product id is required", ErrInvalidArgument)
		}
		if it.Quantity <= 0 {
			return invalidArgument(fmt.Errorf("product %d: %w", it.ProductID, domain.ErrInvalidQuantity))
		}
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}

func randomSuffix() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

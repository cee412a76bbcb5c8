package port

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/hot-product/internal/core/domain"
)

// ErrDuplicateKey is returned when an insert or update violates a unique index.
var ErrDuplicateKey = errors.New("duplicate key")

type ProductRepository interface {
	// InsertProduct persists product and sets its generated ID
	InsertProduct(ctx context.Context, product *domain.Product) error

	// FindProductByID returns nil, nil when the product does not exist
	FindProductByID(ctx context.Context, id int64) (*domain.Product, error)

	FindAllProducts(ctx context.Context) ([]domain.Product, error)

	// GetStock returns nil when the product does not exist
	GetStock(ctx context.Context, id int64) (*int, error)

	// DecrementStock subtracts quantity only if enough stock remains
	DecrementStock(ctx context.Context, id int64, quantity int) (int64, error)

	IncrementStock(ctx context.Context, id int64, quantity int) (int64, error)

	ExistsByName(ctx context.Context, name string) (bool, error)

	ExistsByNameExcludingID(ctx context.Context, name string, id int64) (bool, error)

	// UpdateSelective writes the non-nil fields of patch
	UpdateSelective(ctx context.Context, id int64, patch domain.ProductPatch, updatedAt time.Time) (int64, error)
}

type OrderRepository interface {
	// InsertOrder persists order without items and sets its generated ID
	InsertOrder(ctx context.Context, order *domain.Order) error

	UpdateOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error

	// UpdateOrderStatus transitions status only when the current status is from
	UpdateOrderStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (int64, error)

	// FindOrderByID returns the order with its items, or nil, nil
	FindOrderByID(ctx context.Context, id int64) (*domain.Order, error)

	FindOrdersByUserID(ctx context.Context, userID int64) ([]domain.Order, error)

	InsertOrderItem(ctx context.Context, item *domain.OrderItem) error

	FindItemsByOrderID(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
}

type Store interface {
	ProductRepository
	OrderRepository

	// InTx runs fn inside a single transaction. fn's Store is bound to it.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

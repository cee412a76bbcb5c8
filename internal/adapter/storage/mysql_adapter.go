package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/hot-product/internal/core/domain"
	"github.com/rl1809/hot-product/internal/port"
)

const mysqlErrDuplicateEntry = 1062

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLAdapter struct {
	db *sql.DB
	q  querier
	tx bool
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, q: db}
}

func (m *MySQLAdapter) InTx(ctx context.Context, fn func(tx port.Store) error) error {
	if m.tx {
		return fn(m)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&MySQLAdapter{db: m.db, q: tx, tx: true}); err != nil {
		return err
	}
	return tx.Commit()
}

// products

const productColumns = `id, name, price, stock, description, created_time, updated_time`

func (m *MySQLAdapter) InsertProduct(ctx context.Context, p *domain.Product) error {
	result, err := m.q.ExecContext(ctx, `
		INSERT INTO products (name, price, stock, description, created_time, updated_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Price, p.Stock, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	p.ID = id
	return nil
}

func (m *MySQLAdapter) FindProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(m.q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (m *MySQLAdapter) FindAllProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) GetStock(ctx context.Context, id int64) (*int, error) {
	var stock int
	err := m.q.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, id).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	return &stock, nil
}

func (m *MySQLAdapter) DecrementStock(ctx context.Context, id int64, quantity int) (int64, error) {
	result, err := m.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?
		WHERE id = ? AND stock >= ?`,
		quantity, id, quantity,
	)
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	return result.RowsAffected()
}

func (m *MySQLAdapter) IncrementStock(ctx context.Context, id int64, quantity int) (int64, error) {
	result, err := m.q.ExecContext(ctx,
		`UPDATE products SET stock = stock + ? WHERE id = ?`, quantity, id)
	if err != nil {
		return 0, fmt.Errorf("increment stock: %w", err)
	}
	return result.RowsAffected()
}

func (m *MySQLAdapter) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int
	err := m.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count products by name: %w", err)
	}
	return count > 0, nil
}

func (m *MySQLAdapter) ExistsByNameExcludingID(ctx context.Context, name string, id int64) (bool, error) {
	var count int
	err := m.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE name = ? AND id != ?`, name, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count products by name: %w", err)
	}
	return count > 0, nil
}

// UpdateSelective relies on clientFoundRows=true in the DSN so that a matched
// but unchanged row still counts as affected.
func (m *MySQLAdapter) UpdateSelective(ctx context.Context, id int64, patch domain.ProductPatch, updatedAt time.Time) (int64, error) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *patch.Price)
	}
	if patch.Stock != nil {
		sets = append(sets, "stock = ?")
		args = append(args, *patch.Stock)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	sets = append(sets, "updated_time = ?")
	args = append(args, updatedAt, id)

	result, err := m.q.ExecContext(ctx,
		`UPDATE products SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return 0, fmt.Errorf("update product: %w", translate(err))
	}
	return result.RowsAffected()
}

// orders

const orderColumns = `id, order_number, user_id, total_amount, status, created_time, updated_time`

func (m *MySQLAdapter) InsertOrder(ctx context.Context, o *domain.Order) error {
	result, err := m.q.ExecContext(ctx, `
		INSERT INTO orders (order_number, user_id, total_amount, status, created_time, updated_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.OrderNumber, o.UserID, o.TotalAmount, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", translate(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	o.ID = id
	return nil
}

func (m *MySQLAdapter) UpdateOrderTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	_, err := m.q.ExecContext(ctx,
		`UPDATE orders SET total_amount = ?, updated_time = ? WHERE id = ?`, total, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update order total: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (int64, error) {
	result, err := m.q.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_time = ?
		WHERE id = ? AND status = ?`,
		to, time.Now(), id, from,
	)
	if err != nil {
		return 0, fmt.Errorf("update order status: %w", err)
	}
	return result.RowsAffected()
}

func (m *MySQLAdapter) FindOrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(m.q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	items, err := m.findItemsWithProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (m *MySQLAdapter) FindOrdersByUserID(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := m.q.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_time DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) InsertOrderItem(ctx context.Context, it *domain.OrderItem) error {
	result, err := m.q.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, price, subtotal)
		VALUES (?, ?, ?, ?, ?)`,
		it.OrderID, it.ProductID, it.Quantity, it.Price, it.Subtotal,
	)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("order item id: %w", err)
	}
	it.ID = id
	return nil
}

func (m *MySQLAdapter) FindItemsByOrderID(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := m.q.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price, subtotal
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) findItemsWithProduct(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := m.q.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.subtotal,
		       p.name, p.description
		FROM order_items oi
		LEFT JOIN products p ON oi.product_id = p.id
		WHERE oi.order_id = ?
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderItem
	for rows.Next() {
		var (
			it          domain.OrderItem
			name, descr sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.Subtotal, &name, &descr); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if name.Valid {
			it.Product = &domain.ProductRef{Name: name.String, Description: descr.String}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p     domain.Product
		descr sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &descr, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = descr.String
	return &p, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.TotalAmount, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

func translate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
		return fmt.Errorf("%w: %s", port.ErrDuplicateKey, me.Message)
	}
	return err
}

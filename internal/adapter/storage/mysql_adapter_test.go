package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/hot-product/internal/core/domain"
	"github.com/rl1809/hot-product/internal/port"
)

func getMySQLAdapter(t *testing.T) *MySQLAdapter {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/hot_product?parseTime=true&clientFoundRows=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	adapter := NewMySQLAdapter(db)
	if err := adapter.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return adapter
}

func seedProduct(t *testing.T, m *MySQLAdapter, stock int) *domain.Product {
	t.Helper()

	now := time.Now().Truncate(time.Millisecond)
	p := &domain.Product{
		Name:        fmt.Sprintf("it-product-%d", time.Now().UnixNano()),
		Price:       decimal.RequireFromString("19.99"),
		Stock:       stock,
		Description: "integration",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.InsertProduct(context.Background(), p); err != nil {
		t.Fatalf("InsertProduct failed: %v", err)
	}
	t.Cleanup(func() {
		m.db.Exec(`DELETE FROM products WHERE id = ?`, p.ID)
	})
	return p
}

func TestMySQL_InsertAndFindProduct(t *testing.T) {
	m := getMySQLAdapter(t)
	ctx := context.Background()

	p := seedProduct(t, m, 7)

	got, err := m.FindProductByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindProductByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected product, got nil")
	}
	if got.Name != p.Name || got.Stock != 7 || !got.Price.Equal(p.Price) {
		t.Errorf("unexpected product: %+v", got)
	}

	missing, err := m.FindProductByID(ctx, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for nonexistent product")
	}
}

func TestMySQL_DuplicateName(t *testing.T) {
	m := getMySQLAdapter(t)
	p := seedProduct(t, m, 1)

	dup := &domain.Product{Name: p.Name, Price: p.Price, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
	err := m.InsertProduct(context.Background(), dup)
	if !errors.Is(err, port.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got: %v", err)
	}
}

func TestMySQL_DecrementStock_Conditional(t *testing.T) {
	m := getMySQLAdapter(t)
	ctx := context.Background()
	p := seedProduct(t, m, 5)

	rows, err := m.DecrementStock(ctx, p.ID, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 0 {
		t.Errorf("expected 0 rows for oversized decrement, got %d", rows)
	}

	rows, err = m.DecrementStock(ctx, p.ID, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected 1 row, got %d", rows)
	}

	stock, _ := m.GetStock(ctx, p.ID)
	if stock == nil || *stock != 0 {
		t.Errorf("expected stock 0, got %v", stock)
	}
}

func TestMySQL_DecrementStock_Concurrent(t *testing.T) {
	m := getMySQLAdapter(t)
	ctx := context.Background()

	initialStock := 20
	p := seedProduct(t, m, initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := m.DecrementStock(ctx, p.ID, 1)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if rows == 1 {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}
}

func TestMySQL_UpdateSelective(t *testing.T) {
	m := getMySQLAdapter(t)
	ctx := context.Background()
	p := seedProduct(t, m, 3)

	stock := 5
	updatedAt := time.Now().Add(time.Second).Truncate(time.Millisecond)
	rows, err := m.UpdateSelective(ctx, p.ID, domain.ProductPatch{Stock: &stock}, updatedAt)
	if err != nil {
		t.Fatalf("UpdateSelective failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row, got %d", rows)
	}

	got, _ := m.FindProductByID(ctx, p.ID)
	if got.Stock != 5 || got.Name != p.Name || !got.Price.Equal(p.Price) {
		t.Errorf("unexpected product after patch: %+v", got)
	}
	if !got.UpdatedAt.After(p.UpdatedAt) {
		t.Errorf("expected updated time to advance, got %v", got.UpdatedAt)
	}
}

func TestMySQL_InTx_RollbackOnError(t *testing.T) {
	m := getMySQLAdapter(t)
	ctx := context.Background()
	p := seedProduct(t, m, 10)

	boom := errors.New("boom")
	err := m.InTx(ctx, func(tx port.Store) error {
		if _, err := tx.DecrementStock(ctx, p.ID, 4); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got: %v", err)
	}

	stock, _ := m.GetStock(ctx, p.ID)
	if stock == nil || *stock != 10 {
		t.Errorf("expected stock restored to 10, got %v", stock)
	}
}

func TestMySQL_OrderRoundTrip(t *testing.T) {
	m := getMySQLAdapter(t)
	ctx := context.Background()
	p := seedProduct(t, m, 10)

	now := time.Now().Truncate(time.Millisecond)
	order := domain.NewPendingOrder(domain.GenerateOrderNumber(now, fmt.Sprintf("%08d", now.UnixNano()%1e8)), 42, now)
	if err := m.InsertOrder(ctx, order); err != nil {
		t.Fatalf("InsertOrder failed: %v", err)
	}
	t.Cleanup(func() {
		m.db.Exec(`DELETE FROM order_items WHERE order_id = ?`, order.ID)
		m.db.Exec(`DELETE FROM orders WHERE id = ?`, order.ID)
	})

	item, err := domain.NewOrderItem(order.ID, p.ID, 2, p.Price)
	if err != nil {
		t.Fatalf("NewOrderItem failed: %v", err)
	}
	if err := m.InsertOrderItem(ctx, &item); err != nil {
		t.Fatalf("InsertOrderItem failed: %v", err)
	}
	if err := m.UpdateOrderTotal(ctx, order.ID, item.Subtotal); err != nil {
		t.Fatalf("UpdateOrderTotal failed: %v", err)
	}

	dup := domain.NewPendingOrder(order.OrderNumber, 42, now)
	if err := m.InsertOrder(ctx, dup); !errors.Is(err, port.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for reused order number, got: %v", err)
	}

	got, err := m.FindOrderByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindOrderByID failed: %v", err)
	}
	if got == nil || len(got.Items) != 1 {
		t.Fatalf("expected order with 1 item, got %+v", got)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("39.98")) {
		t.Errorf("expected total 39.98, got %s", got.TotalAmount)
	}
	if got.Items[0].Product == nil || got.Items[0].Product.Name != p.Name {
		t.Errorf("expected joined product name %q, got %+v", p.Name, got.Items[0].Product)
	}

	rows, err := m.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled)
	if err != nil || rows != 1 {
		t.Fatalf("expected first status change to apply, rows=%d err=%v", rows, err)
	}
	rows, err = m.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled)
	if err != nil || rows != 0 {
		t.Errorf("expected second status change to be a no-op, rows=%d err=%v", rows, err)
	}
}

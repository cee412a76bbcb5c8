package storage

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id           BIGINT AUTO_INCREMENT PRIMARY KEY,
		name         VARCHAR(255)   NOT NULL,
		price        DECIMAL(12, 2) NOT NULL,
		stock        INT            NOT NULL DEFAULT 0,
		description  TEXT,
		created_time DATETIME(3)    NOT NULL,
		updated_time DATETIME(3)    NOT NULL,
		UNIQUE KEY uk_products_name (name),
		CONSTRAINT chk_products_stock CHECK (stock >= 0)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS orders (
		id           BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_number VARCHAR(32)    NOT NULL,
		user_id      BIGINT         NOT NULL,
		total_amount DECIMAL(14, 2) NOT NULL DEFAULT 0,
		status       VARCHAR(16)    NOT NULL,
		created_time DATETIME(3)    NOT NULL,
		updated_time DATETIME(3)    NOT NULL,
		UNIQUE KEY uk_orders_number (order_number),
		KEY idx_orders_user (user_id, created_time)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id   BIGINT         NOT NULL,
		product_id BIGINT         NOT NULL,
		quantity   INT            NOT NULL,
		price      DECIMAL(12, 2) NOT NULL,
		subtotal   DECIMAL(14, 2) NOT NULL,
		KEY idx_order_items_order (order_id)
	) ENGINE=InnoDB`,
}

// EnsureSchema creates the tables the adapter needs if they are missing.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/shoes-cart/internal/core/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGINT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		price DECIMAL(10,2) NOT NULL,
		image VARCHAR(1024) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		item_id BIGINT PRIMARY KEY,
		stock INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
}

// MySQLAdapter serves product details and stock from the catalog database.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	stock := domain.Stock{ProductID: productID}
	err := m.db.QueryRowContext(ctx, `
		SELECT stock FROM inventory WHERE item_id = ?`, productID,
	).Scan(&stock.Available)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Stock{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Stock{}, fmt.Errorf("query inventory: %w", err)
	}
	if err := stock.Validate(); err != nil {
		return domain.Stock{}, err
	}
	return stock, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, title, price, image FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Title, &p.Price, &p.Image)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

// SetStock upserts the available amount for a product.
func (m *MySQLAdapter) SetStock(ctx context.Context, productID int64, available int) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory (item_id, stock) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE stock = VALUES(stock)`,
		productID, available,
	)
	if err != nil {
		return fmt.Errorf("upsert inventory: %w", err)
	}
	return nil
}

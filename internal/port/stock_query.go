package port

import (
	"context"

	"github.com/rl1809/shoes-cart/internal/core/domain"
)

type StockQuery interface {
	// GetStock returns the current available amount for a product.
	// Unknown products return domain.ErrProductNotFound.
	GetStock(ctx context.Context, productID int64) (domain.Stock, error)
}

type ProductCatalog interface {
	// GetProduct returns the display details for a product.
	// Unknown products return domain.ErrProductNotFound.
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
}

package catalog

import (
	"context"
	"errors"

	"github.com/fjod/storefront-cart/internal/domain"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// Catalog is the read-only product lookup the cart depends on.
type Catalog interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

package service

import (
	"context"
	"errors"

	"github.com/fjod/storefront-cart/internal/catalog"
	"github.com/fjod/storefront-cart/internal/domain"
)

// productLookup memoizes catalog answers for the duration of one operation.
// It is never shared between requests, so price changes show up on the next
// call.
type productLookup struct {
	catalog  catalog.Catalog
	products map[string]*domain.Product
	missing  map[string]struct{}
}

func newProductLookup(c catalog.Catalog) *productLookup {
	return &productLookup{
		catalog:  c,
		products: make(map[string]*domain.Product),
		missing:  make(map[string]struct{}),
	}
}

func (l *productLookup) get(ctx context.Context, productID string) (*domain.Product, error) {
	if p, ok := l.products[productID]; ok {
		return p, nil
	}
	if _, ok := l.missing[productID]; ok {
		return nil, ErrProductNotFound
	}

	p, err := l.catalog.GetProduct(ctx, productID)
	if errors.Is(err, ErrProductNotFound) {
		l.missing[productID] = struct{}{}
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	l.products[productID] = p
	return p, nil
}

package repository

import (
	"context"
	"errors"

	"github.com/fjod/storefront-cart/internal/domain"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrVersionConflict = errors.New("cart was modified concurrently")
)

// CartRepository defines the interface for cart persistence.
// SaveCart is a compare-and-swap on cart.Version: a cart with version 0 is
// inserted, any other version must match the stored one. On success the
// cart's Version, ID and timestamps are updated in place.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
	Ping(ctx context.Context) error
}

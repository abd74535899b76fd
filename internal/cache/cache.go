package cache

import (
	"context"
	"errors"

	"github.com/fjod/storefront-cart/internal/domain"
)

// CartCache stores raw cart documents. Catalog data is never cached here.
//
// Entries are ordered by cart version: Invalidate leaves a marker for the
// version just written, and Set refuses carts older than what the cache has
// already seen. A slow read can therefore never put a stale cart back.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Invalidate(ctx context.Context, userID string, version int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop is used when caching is disabled; every Get is a miss.
type Noop struct{}

func (Noop) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }

func (Noop) Set(context.Context, string, *domain.Cart) error { return nil }

func (Noop) Invalidate(context.Context, string, int64) error { return nil }

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	Name string
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "catalog",
		ConsecutiveFailures: 5,
		OpenTimeout:         10 * time.Second,
		HalfOpenRequests:    1,
	}
}

// BreakerCatalog guards a Catalog with a circuit breaker. Unknown products are
// a normal answer and do not count as failures.
type BreakerCatalog struct {
	next Catalog
	cb   *gobreaker.CircuitBreaker[*domain.Product]
}

func NewBreakerCatalog(next Catalog, s BreakerSettings, onStateChange func(name string, from, to gobreaker.State)) *BreakerCatalog {
	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenRequests,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound)
		},
		OnStateChange: onStateChange,
	}

	return &BreakerCatalog{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[*domain.Product](settings),
	}
}

func (b *BreakerCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, err := b.cb.Execute(func() (*domain.Product, error) {
		return b.next.GetProduct(ctx, productID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return p, err
}

func (b *BreakerCatalog) State() gobreaker.State {
	return b.cb.State()
}

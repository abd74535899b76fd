package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	calls   int
	product *domain.Product
	err     error
}

func (s *stubCatalog) GetProduct(context.Context, string) (*domain.Product, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func testSettings() BreakerSettings {
	return BreakerSettings{
		Name:                "catalog-test",
		ConsecutiveFailures: 2,
		OpenTimeout:         time.Minute,
		HalfOpenRequests:    1,
	}
}

func TestBreaker_PassesThrough(t *testing.T) {
	stub := &stubCatalog{product: &domain.Product{ID: "p1"}}
	b := NewBreakerCatalog(stub, testSettings(), nil)

	p, err := b.GetProduct(context.Background(), "p1")

	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}

func TestBreaker_NotFoundDoesNotTrip(t *testing.T) {
	stub := &stubCatalog{err: ErrProductNotFound}
	b := NewBreakerCatalog(stub, testSettings(), nil)

	for i := 0; i < 5; i++ {
		_, err := b.GetProduct(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrProductNotFound)
	}

	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 5, stub.calls)
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	stub := &stubCatalog{err: errors.New("connection refused")}
	var transitions []gobreaker.State
	b := NewBreakerCatalog(stub, testSettings(), func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	})

	for i := 0; i < 2; i++ {
		_, err := b.GetProduct(context.Background(), "p1")
		assert.ErrorContains(t, err, "connection refused")
	}

	_, err := b.GetProduct(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Equal(t, 2, stub.calls, "open breaker must not call the backend")
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

package repository

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository keeps carts in process memory. Values are copied on the
// way in and out so callers never share item slices with the store.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart // userID -> cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string]*domain.Cart),
	}
}

func (s *MemoryRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cart, exists := s.carts[userID]
	if !exists {
		return nil, ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (s *MemoryRepository) SaveCart(_ context.Context, cart *domain.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored, exists := s.carts[cart.UserID]

	switch {
	case cart.Version == 0 && exists:
		return ErrVersionConflict
	case cart.Version == 0:
		cart.ID = uuid.New().String()
		cart.CreatedAt = now
	case !exists || stored.Version != cart.Version:
		return ErrVersionConflict
	}

	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	cart.Version++
	cart.UpdatedAt = now
	s.carts[cart.UserID] = cart.Clone()
	return nil
}

func (s *MemoryRepository) Ping(context.Context) error {
	return nil
}

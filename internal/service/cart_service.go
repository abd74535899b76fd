package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront-cart/internal/cache"
	"github.com/fjod/storefront-cart/internal/catalog"
	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/fjod/storefront-cart/internal/logger"
	"github.com/fjod/storefront-cart/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxAttempts bounds the read-modify-write retries after a version
// conflict.
const DefaultMaxAttempts = 3

const sharedLoadTimeout = 10 * time.Second

type CartService struct {
	repo        repository.CartRepository
	catalog     catalog.Catalog
	cache       cache.CartCache
	sfg         singleflight.Group // collapses concurrent cache misses per user
	maxAttempts int
	now         func() time.Time
}

func NewCartService(repo repository.CartRepository, c catalog.Catalog, cartCache cache.CartCache) *CartService {
	if cartCache == nil {
		cartCache = cache.Noop{}
	}
	return &CartService{
		repo:        repo,
		catalog:     c,
		cache:       cartCache,
		maxAttempts: DefaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// mutation edits a loaded cart. It reports whether anything changed so that
// no-op requests do not write.
type mutation func(ctx context.Context, cart *domain.Cart, lookup *productLookup) (bool, error)

// AddItem adds quantity of a product (and color) to the user's cart, creating
// the cart on first use. Re-adding an existing (product, color) increments it.
func (s *CartService) AddItem(ctx context.Context, p AddItemParams) (*domain.CartView, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}

	return s.modify(ctx, p.UserID, true, func(ctx context.Context, cart *domain.Cart, lookup *productLookup) (bool, error) {
		product, err := lookup.get(ctx, p.ProductID)
		if err != nil {
			return false, err
		}

		color, err := selectColor(product, p.ColorID)
		if err != nil {
			return false, err
		}

		colorID := ""
		if color != nil {
			colorID = color.ID
		}
		if i := cart.FindItem(p.ProductID, colorID); i >= 0 {
			if err := checkQuantityLimit(cart.Items[i].Quantity + p.Quantity); err != nil {
				return false, err
			}
		}

		cart.AddQuantity(p.ProductID, p.Quantity, color, s.now())
		return true, nil
	})
}

// UpdateItem changes quantity and/or color of an existing line item. Moving an
// item onto a color the cart already holds merges the two.
func (s *CartService) UpdateItem(ctx context.Context, p UpdateItemParams) (*domain.CartView, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}

	return s.modify(ctx, p.UserID, false, func(ctx context.Context, cart *domain.Cart, lookup *productLookup) (bool, error) {
		idx, err := locateItem(cart, p.ProductID, p.OldColorID)
		if err != nil {
			return false, err
		}

		if p.ColorID == "" || p.ColorID == cart.Items[idx].ColorID() {
			if p.Quantity == nil || cart.Items[idx].Quantity == *p.Quantity {
				return false, nil
			}
			cart.Items[idx].Quantity = *p.Quantity
			return true, nil
		}

		product, err := lookup.get(ctx, p.ProductID)
		if err != nil {
			return false, err
		}
		color, ok := product.FindColor(p.ColorID)
		if !ok {
			return false, ErrInvalidColorSelection
		}

		quantity := cart.Items[idx].Quantity
		if p.Quantity != nil {
			quantity = *p.Quantity
		}
		if target := cart.FindItem(p.ProductID, color.ID); target >= 0 && target != idx {
			if err := checkQuantityLimit(cart.Items[target].Quantity + quantity); err != nil {
				return false, err
			}
		}
		if cart.Recolor(idx, color.Snapshot(), quantity) {
			logger.FromCtx(ctx).Debug("merged cart items after color change",
				zap.String("user_id", p.UserID),
				zap.String("product_id", p.ProductID),
				zap.String("color_id", p.ColorID),
			)
		}
		return true, nil
	})
}

// RemoveItem drops the (product, color) item, or every item of the product
// when no color is given. Removing something that is not there is a no-op.
func (s *CartService) RemoveItem(ctx context.Context, p RemoveItemParams) (*domain.CartView, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}

	view, err := s.modify(ctx, p.UserID, false, func(_ context.Context, cart *domain.Cart, _ *productLookup) (bool, error) {
		return cart.RemoveProduct(p.ProductID, p.ColorID) > 0, nil
	})
	if errors.Is(err, ErrCartNotFound) {
		return domain.NewCartView(domain.NewCart(p.UserID), nil), nil
	}
	return view, err
}

// ClearCart empties the cart but keeps the document.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.CartView, error) {
	userID, err := requireUserID(userID)
	if err != nil {
		return nil, err
	}

	view, err := s.modify(ctx, userID, false, func(_ context.Context, cart *domain.Cart, _ *productLookup) (bool, error) {
		if len(cart.Items) == 0 {
			return false, nil
		}
		cart.Items = []domain.CartItem{}
		return true, nil
	})
	if errors.Is(err, ErrCartNotFound) {
		return domain.NewCartView(domain.NewCart(userID), nil), nil
	}
	return view, err
}

// GetCart returns the populated cart. Items whose product left the catalog are
// dropped and the pruned cart is written back.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.CartView, error) {
	userID, err := requireUserID(userID)
	if err != nil {
		return nil, err
	}

	cart, err := s.loadCart(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return domain.NewCartView(domain.NewCart(userID), nil), nil
	}
	if err != nil {
		return nil, err
	}

	lookup := newProductLookup(s.catalog)
	items, pruned, err := s.resolve(ctx, cart, lookup)
	if err != nil {
		return nil, err
	}
	if pruned == 0 {
		return domain.NewCartView(cart, items), nil
	}

	// write the pruned list through the versioned path; resolve runs again on
	// the stored copy and reuses the lookups made above
	view, err := s.modifyWith(ctx, userID, false, lookup, func(context.Context, *domain.Cart, *productLookup) (bool, error) {
		return false, nil
	})
	if errors.Is(err, ErrCartNotFound) {
		return domain.NewCartView(domain.NewCart(userID), nil), nil
	}
	return view, err
}

// modify runs load, mutate, resolve and save, retrying the whole sequence
// when another request saved the cart in between.
func (s *CartService) modify(ctx context.Context, userID string, create bool, fn mutation) (*domain.CartView, error) {
	return s.modifyWith(ctx, userID, create, newProductLookup(s.catalog), fn)
}

func (s *CartService) modifyWith(ctx context.Context, userID string, create bool, lookup *productLookup, fn mutation) (*domain.CartView, error) {
	log := logger.FromCtx(ctx).With(zap.String("user_id", userID))

	for attempt := 1; ; attempt++ {
		cart, err := s.repo.GetCart(ctx, userID)
		switch {
		case errors.Is(err, ErrCartNotFound) && create:
			cart = domain.NewCart(userID)
		case err != nil:
			return nil, err
		}

		changed, err := fn(ctx, cart, lookup)
		if err != nil {
			return nil, err
		}

		items, pruned, err := s.resolve(ctx, cart, lookup)
		if err != nil {
			return nil, err
		}
		if !changed && pruned == 0 {
			return domain.NewCartView(cart, items), nil
		}

		err = s.repo.SaveCart(ctx, cart)
		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt < s.maxAttempts {
				log.Debug("cart version conflict, retrying", zap.Int("attempt", attempt))
				continue
			}
			log.Warn("cart version conflict, giving up", zap.Int("attempts", attempt))
			return nil, ErrConcurrentUpdate
		}
		if err != nil {
			log.Error("failed to save cart", zap.Error(err))
			return nil, err
		}

		s.invalidateCache(ctx, userID, cart.Version)
		return domain.NewCartView(cart, items), nil
	}
}

// resolve joins every item with live catalog data. Items whose product no
// longer exists are removed from cart; the number removed is returned.
func (s *CartService) resolve(ctx context.Context, cart *domain.Cart, lookup *productLookup) ([]domain.ItemView, int, error) {
	items := make([]domain.ItemView, 0, len(cart.Items))
	stale := make(map[string]struct{})

	for _, item := range cart.Items {
		product, err := lookup.get(ctx, item.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			stale[item.ProductID] = struct{}{}
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to resolve product %s: %w", item.ProductID, err)
		}
		items = append(items, domain.NewItemView(item, product))
	}

	pruned := 0
	if len(stale) > 0 {
		pruned = cart.RemoveProducts(stale)
		logger.FromCtx(ctx).Info("pruned cart items for deleted products",
			zap.String("user_id", cart.UserID),
			zap.Int("pruned", pruned),
		)
	}
	return items, pruned, nil
}

// loadCart reads through the cache. Concurrent misses for one user share a
// single load, which runs detached from any one caller's cancellation; each
// caller still stops waiting when its own ctx is done.
func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	ch := s.sfg.DoChan(userID, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.FromCtx(ctx).Warn("cache get failed", zap.String("user_id", userID), zap.Error(err))
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if err != nil {
			return nil, err
		}

		// refused by the cache when a newer version was saved meanwhile
		if err := s.cache.Set(ctx, userID, cart); err != nil {
			logger.FromCtx(ctx).Warn("cache set failed", zap.String("user_id", userID), zap.Error(err))
		}
		return cart, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// the value is shared between callers
		return res.Val.(*domain.Cart).Clone(), nil
	}
}

func (s *CartService) invalidateCache(ctx context.Context, userID string, version int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID, version); err != nil {
		logger.FromCtx(ctx).Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// selectColor picks the snapshot for an add. Products with colors default to
// their first color.
func selectColor(product *domain.Product, colorID string) (*domain.ColorSnapshot, error) {
	if colorID == "" {
		if !product.HasColors() {
			return nil, nil
		}
		snapshot := product.Colors[0].Snapshot()
		return &snapshot, nil
	}

	color, ok := product.FindColor(colorID)
	if !ok {
		return nil, ErrInvalidColorSelection
	}
	snapshot := color.Snapshot()
	return &snapshot, nil
}

// locateItem finds the item an update refers to. Without oldColorID the
// color-less item wins, then the product's only item; several colored items
// make the request ambiguous.
func locateItem(cart *domain.Cart, productID, oldColorID string) (int, error) {
	if oldColorID != "" {
		if i := cart.FindItem(productID, oldColorID); i >= 0 {
			return i, nil
		}
		return -1, ErrCartItemNotFound
	}

	if i := cart.FindItem(productID, ""); i >= 0 {
		return i, nil
	}

	candidates := cart.ProductItems(productID)
	switch len(candidates) {
	case 0:
		return -1, ErrCartItemNotFound
	case 1:
		return candidates[0], nil
	default:
		return -1, ErrAmbiguousCartItem
	}
}

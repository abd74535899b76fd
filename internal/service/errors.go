package service

import (
	"errors"

	"github.com/fjod/storefront-cart/internal/catalog"
	"github.com/fjod/storefront-cart/internal/repository"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidColorSelection = errors.New("selected color is not available for this product")
	ErrCartItemNotFound      = errors.New("cart item not found")
	ErrAmbiguousCartItem     = errors.New("cart holds several colors of this product, oldColorId is required")
	ErrConcurrentUpdate      = errors.New("cart was updated concurrently, please retry")

	ErrProductNotFound    = catalog.ErrProductNotFound
	ErrCatalogUnavailable = catalog.ErrCatalogUnavailable
	ErrCartNotFound       = repository.ErrCartNotFound
)

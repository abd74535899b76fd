package service

import (
	"fmt"
	"strings"

	"github.com/fjod/storefront-cart/internal/domain"
)

type AddItemParams struct {
	UserID    string
	ProductID string
	Quantity  int
	ColorID   string
}

// UpdateItemParams changes the quantity and/or color of one line item.
// OldColorID selects which colored item of the product is meant.
type UpdateItemParams struct {
	UserID     string
	ProductID  string
	Quantity   *int
	ColorID    string
	OldColorID string
}

// RemoveItemParams with an empty ColorID removes every item of the product.
type RemoveItemParams struct {
	UserID    string
	ProductID string
	ColorID   string
}

func (p *AddItemParams) normalize() error {
	p.UserID = strings.TrimSpace(p.UserID)
	p.ProductID = strings.TrimSpace(p.ProductID)
	p.ColorID = strings.TrimSpace(p.ColorID)

	if err := requireIDs(p.UserID, p.ProductID); err != nil {
		return err
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than 0", ErrValidation)
	}
	return checkQuantityLimit(p.Quantity)
}

func (p *UpdateItemParams) normalize() error {
	p.UserID = strings.TrimSpace(p.UserID)
	p.ProductID = strings.TrimSpace(p.ProductID)
	p.ColorID = strings.TrimSpace(p.ColorID)
	p.OldColorID = strings.TrimSpace(p.OldColorID)

	if err := requireIDs(p.UserID, p.ProductID); err != nil {
		return err
	}
	if p.Quantity != nil && *p.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than 0", ErrValidation)
	}
	if p.Quantity != nil {
		if err := checkQuantityLimit(*p.Quantity); err != nil {
			return err
		}
	}
	if p.Quantity == nil && p.ColorID == "" {
		return fmt.Errorf("%w: quantity or colorId is required", ErrValidation)
	}
	return nil
}

func (p *RemoveItemParams) normalize() error {
	p.UserID = strings.TrimSpace(p.UserID)
	p.ProductID = strings.TrimSpace(p.ProductID)
	p.ColorID = strings.TrimSpace(p.ColorID)
	return requireIDs(p.UserID, p.ProductID)
}

func requireIDs(userID, productID string) error {
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if productID == "" {
		return fmt.Errorf("%w: productId is required", ErrValidation)
	}
	return nil
}

func requireUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: userId is required", ErrValidation)
	}
	return userID, nil
}

// checkQuantityLimit also guards sums of two capped quantities.
func checkQuantityLimit(quantity int) error {
	if quantity > domain.MaxItemQuantity {
		return fmt.Errorf("%w: quantity must not exceed %d", ErrValidation, domain.MaxItemQuantity)
	}
	return nil
}

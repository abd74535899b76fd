package domain

import "time"

// MaxItemQuantity caps the quantity of a single line item.
const MaxItemQuantity = 999

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	Version   int64      `bson:"version" json:"version"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	ProductID string         `bson:"product_id" json:"product_id"`
	Quantity  int            `bson:"quantity" json:"quantity"`
	Color     *ColorSnapshot `bson:"color,omitempty" json:"color,omitempty"`
	AddedAt   time.Time      `bson:"added_at" json:"added_at"`
}

// ColorSnapshot is the copy of a product color taken when the item was added
// or last re-colored. Inventory is never stored here.
type ColorSnapshot struct {
	ID       string `bson:"id" json:"id"`
	Label    string `bson:"label" json:"label"`
	ImageRef string `bson:"image_ref,omitempty" json:"image_ref,omitempty"`
}

// NewCart returns an empty cart that has never been saved (version 0).
func NewCart(userID string) *Cart {
	return &Cart{
		UserID: userID,
		Items:  []CartItem{},
	}
}

// ColorID returns the id of the item's color snapshot, or "" for items
// without a color.
func (i CartItem) ColorID() string {
	if i.Color == nil {
		return ""
	}
	return i.Color.ID
}

// Matches reports whether the item has the key (productID, colorID). An empty
// colorID only matches items without a color.
func (i CartItem) Matches(productID, colorID string) bool {
	if i.ProductID != productID {
		return false
	}
	if colorID == "" {
		return i.Color == nil
	}
	return i.Color != nil && i.Color.ID == colorID
}

// FindItem returns the index of the item keyed by (productID, colorID) or -1.
func (c *Cart) FindItem(productID, colorID string) int {
	for i := range c.Items {
		if c.Items[i].Matches(productID, colorID) {
			return i
		}
	}
	return -1
}

// ProductItems returns the indexes of every item for productID, in cart order.
func (c *Cart) ProductItems(productID string) []int {
	var idx []int
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			idx = append(idx, i)
		}
	}
	return idx
}

// AddQuantity increments the item keyed by (productID, color) or appends a new
// one. It reports whether a new item was appended.
func (c *Cart) AddQuantity(productID string, quantity int, color *ColorSnapshot, now time.Time) bool {
	colorID := ""
	if color != nil {
		colorID = color.ID
	}
	if i := c.FindItem(productID, colorID); i >= 0 {
		c.Items[i].Quantity += quantity
		return false
	}
	c.Items = append(c.Items, CartItem{
		ProductID: productID,
		Quantity:  quantity,
		Color:     color,
		AddedAt:   now,
	})
	return true
}

// Recolor moves the item at idx to color. When another item of the same
// product already carries that color the two are merged into the existing one
// and the moved item is dropped. quantity <= 0 keeps the moved item's current
// quantity. It reports whether a merge happened.
func (c *Cart) Recolor(idx int, color ColorSnapshot, quantity int) bool {
	moving := c.Items[idx]
	if quantity <= 0 {
		quantity = moving.Quantity
	}

	for i := range c.Items {
		if i != idx && c.Items[i].Matches(moving.ProductID, color.ID) {
			c.Items[i].Quantity += quantity
			c.RemoveAt(idx)
			return true
		}
	}

	snapshot := color
	c.Items[idx].Color = &snapshot
	c.Items[idx].Quantity = quantity
	return false
}

// RemoveAt deletes the item at idx keeping the order of the others.
func (c *Cart) RemoveAt(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}

// RemoveProduct removes the item keyed by (productID, colorID); with an empty
// colorID every item of the product is removed. It returns how many items
// were removed.
func (c *Cart) RemoveProduct(productID, colorID string) int {
	kept := c.Items[:0]
	removed := 0
	for _, item := range c.Items {
		drop := item.ProductID == productID && (colorID == "" || item.ColorID() == colorID)
		if drop {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	return removed
}

// RemoveProducts drops every item whose product id is in ids.
func (c *Cart) RemoveProducts(ids map[string]struct{}) int {
	kept := c.Items[:0]
	removed := 0
	for _, item := range c.Items {
		if _, ok := ids[item.ProductID]; ok {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	return removed
}

// Clone returns a deep copy so callers can mutate items without touching the
// stored value.
func (c *Cart) Clone() *Cart {
	cp := *c
	cp.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		cp.Items[i] = item
		if item.Color != nil {
			color := *item.Color
			cp.Items[i].Color = &color
		}
	}
	return &cp
}

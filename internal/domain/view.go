package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartView is a cart joined with live catalog data.
type CartView struct {
	ID            string          `json:"id,omitempty"`
	UserID        string          `json:"userId"`
	Items         []ItemView      `json:"items"`
	TotalQuantity int             `json:"totalQuantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Version       int64           `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type ItemView struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Quantity  int             `json:"quantity"`
	Color     *ColorSnapshot  `json:"color,omitempty"`
	LineTotal decimal.Decimal `json:"lineTotal"`
	AddedAt   time.Time       `json:"addedAt"`
}

// NewItemView joins a cart item with its product. Stock for a colored item is
// the live inventory of that color when the product still offers it.
func NewItemView(item CartItem, p *Product) ItemView {
	stock := p.Stock
	if item.Color != nil {
		if c, ok := p.FindColor(item.Color.ID); ok {
			stock = c.Inventory
		}
	}

	var color *ColorSnapshot
	if item.Color != nil {
		c := *item.Color
		color = &c
	}

	return ItemView{
		ProductID: item.ProductID,
		Title:     p.Title,
		Price:     p.Price,
		Stock:     stock,
		ImageURL:  p.ImageURL,
		Quantity:  item.Quantity,
		Color:     color,
		LineTotal: p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
		AddedAt:   item.AddedAt,
	}
}

// NewCartView builds the response shape from the cart header and already
// joined items.
func NewCartView(c *Cart, items []ItemView) *CartView {
	view := &CartView{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     items,
		Subtotal:  decimal.Zero,
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if view.Items == nil {
		view.Items = []ItemView{}
	}
	for _, item := range view.Items {
		view.TotalQuantity += item.Quantity
		view.Subtotal = view.Subtotal.Add(item.LineTotal)
	}
	return view
}

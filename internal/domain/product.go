package domain

import "github.com/shopspring/decimal"

// Product is the catalog's view of a sellable product. The cart never stores
// it; prices and stock are always read live.
type Product struct {
	ID       string
	Title    string
	Price    decimal.Decimal
	Stock    int
	ImageURL string
	Colors   []Color
}

type Color struct {
	ID        string
	Label     string
	ImageRef  string
	Inventory int
}

func (p *Product) HasColors() bool {
	return len(p.Colors) > 0
}

func (p *Product) FindColor(id string) (Color, bool) {
	for _, c := range p.Colors {
		if c.ID == id {
			return c, true
		}
	}
	return Color{}, false
}

func (c Color) Snapshot() ColorSnapshot {
	return ColorSnapshot{
		ID:       c.ID,
		Label:    c.Label,
		ImageRef: c.ImageRef,
	}
}

package domain

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func red() *ColorSnapshot  { return &ColorSnapshot{ID: "c1", Label: "Red"} }
func blue() *ColorSnapshot { return &ColorSnapshot{ID: "c2", Label: "Blue"} }

func assertUniqueKeys(t *testing.T, c *Cart) {
	t.Helper()
	seen := make(map[string]bool)
	for _, item := range c.Items {
		key := item.ProductID + "|" + item.ColorID()
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestCartItem_Matches(t *testing.T) {
	plain := CartItem{ProductID: "p1", Quantity: 1}
	colored := CartItem{ProductID: "p1", Quantity: 1, Color: red()}

	assert.True(t, plain.Matches("p1", ""))
	assert.False(t, plain.Matches("p1", "c1"))
	assert.True(t, colored.Matches("p1", "c1"))
	assert.False(t, colored.Matches("p1", ""))
	assert.False(t, colored.Matches("p2", "c1"))
}

func TestAddQuantity_IncrementsExisting(t *testing.T) {
	cart := NewCart("u1")
	now := time.Now()

	assert.True(t, cart.AddQuantity("p1", 2, red(), now))
	assert.False(t, cart.AddQuantity("p1", 2, red(), now))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.Equal(t, "c1", cart.Items[0].ColorID())
}

func TestAddQuantity_DistinctColorsAreSeparateItems(t *testing.T) {
	cart := NewCart("u1")
	now := time.Now()

	cart.AddQuantity("p1", 1, red(), now)
	cart.AddQuantity("p1", 1, blue(), now)
	cart.AddQuantity("p1", 1, nil, now)

	assert.Len(t, cart.Items, 3)
	assertUniqueKeys(t, cart)
}

func TestRecolor_MergesIntoExistingColor(t *testing.T) {
	cart := NewCart("u1")
	now := time.Now()
	cart.AddQuantity("p1", 3, red(), now)
	cart.AddQuantity("p1", 2, blue(), now)

	merged := cart.Recolor(0, *blue(), 0)

	assert.True(t, merged)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "c2", cart.Items[0].ColorID())
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestRecolor_MergeUsesSuppliedQuantity(t *testing.T) {
	cart := NewCart("u1")
	now := time.Now()
	cart.AddQuantity("p1", 3, red(), now)
	cart.AddQuantity("p1", 2, blue(), now)

	cart.Recolor(0, *blue(), 4)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 6, cart.Items[0].Quantity)
}

func TestRecolor_InPlaceWhenNoConflict(t *testing.T) {
	cart := NewCart("u1")
	now := time.Now()
	cart.AddQuantity("p1", 3, red(), now)
	cart.AddQuantity("p2", 1, nil, now)

	merged := cart.Recolor(0, *blue(), 7)

	assert.False(t, merged)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "c2", cart.Items[0].ColorID())
	assert.Equal(t, "Blue", cart.Items[0].Color.Label)
	assert.Equal(t, 7, cart.Items[0].Quantity)
	assert.Equal(t, "p2", cart.Items[1].ProductID)
}

func TestRemoveProduct(t *testing.T) {
	build := func() *Cart {
		cart := NewCart("u1")
		now := time.Now()
		cart.AddQuantity("p1", 1, red(), now)
		cart.AddQuantity("p1", 1, blue(), now)
		cart.AddQuantity("p2", 1, nil, now)
		return cart
	}

	t.Run("all colors", func(t *testing.T) {
		cart := build()
		assert.Equal(t, 2, cart.RemoveProduct("p1", ""))
		require.Len(t, cart.Items, 1)
		assert.Equal(t, "p2", cart.Items[0].ProductID)
	})

	t.Run("one color", func(t *testing.T) {
		cart := build()
		assert.Equal(t, 1, cart.RemoveProduct("p1", "c1"))
		require.Len(t, cart.Items, 2)
		assert.Equal(t, "c2", cart.Items[0].ColorID())
	})

	t.Run("missing", func(t *testing.T) {
		cart := build()
		assert.Equal(t, 0, cart.RemoveProduct("p9", ""))
		assert.Len(t, cart.Items, 3)
	})
}

func TestRemoveProducts(t *testing.T) {
	cart := NewCart("u1")
	now := time.Now()
	cart.AddQuantity("p1", 1, nil, now)
	cart.AddQuantity("p2", 1, nil, now)
	cart.AddQuantity("p3", 1, red(), now)

	removed := cart.RemoveProducts(map[string]struct{}{"p1": {}, "p3": {}})

	assert.Equal(t, 2, removed)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "p2", cart.Items[0].ProductID)
}

func TestClone_IsDeep(t *testing.T) {
	cart := NewCart("u1")
	cart.AddQuantity("p1", 1, red(), time.Now())

	cp := cart.Clone()
	cp.Items[0].Quantity = 9
	cp.Items[0].Color.Label = "Green"

	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.Equal(t, "Red", cart.Items[0].Color.Label)
}

func TestUniqueKeys_RandomSequence(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	colors := []*ColorSnapshot{nil, red(), blue(), {ID: "c3", Label: "Green"}}
	cart := NewCart("u1")

	for step := 0; step < 500; step++ {
		productID := fmt.Sprintf("p%d", rnd.Intn(3))
		switch rnd.Intn(3) {
		case 0:
			cart.AddQuantity(productID, rnd.Intn(3)+1, colors[rnd.Intn(len(colors))], time.Now())
		case 1:
			idx := cart.ProductItems(productID)
			if len(idx) > 0 {
				target := colors[1+rnd.Intn(len(colors)-1)]
				cart.Recolor(idx[rnd.Intn(len(idx))], *target, rnd.Intn(3))
			}
		case 2:
			if rnd.Intn(4) == 0 {
				cart.RemoveProduct(productID, colors[1+rnd.Intn(len(colors)-1)].ID)
			}
		}
		assertUniqueKeys(t, cart)
		for _, item := range cart.Items {
			assert.GreaterOrEqual(t, item.Quantity, 1)
		}
	}
}

func TestNewCartView_Totals(t *testing.T) {
	product := &Product{
		ID:    "p1",
		Title: "Shirt",
		Price: decimal.RequireFromString("12.50"),
		Stock: 40,
		Colors: []Color{
			{ID: "c1", Label: "Red", Inventory: 3},
		},
	}
	cart := NewCart("u1")
	cart.AddQuantity("p1", 2, red(), time.Now())
	cart.AddQuantity("p1", 1, nil, time.Now())

	items := []ItemView{
		NewItemView(cart.Items[0], product),
		NewItemView(cart.Items[1], product),
	}
	view := NewCartView(cart, items)

	assert.Equal(t, 3, view.Items[0].Stock)
	assert.Equal(t, 40, view.Items[1].Stock)
	assert.True(t, decimal.RequireFromString("25").Equal(view.Items[0].LineTotal))
	assert.Equal(t, 3, view.TotalQuantity)
	assert.True(t, decimal.RequireFromString("37.5").Equal(view.Subtotal))
}

func TestNewCartView_EmptyItemsNeverNil(t *testing.T) {
	view := NewCartView(NewCart("u1"), nil)
	assert.NotNil(t, view.Items)
	assert.Empty(t, view.Items)
	assert.True(t, view.Subtotal.IsZero())
}

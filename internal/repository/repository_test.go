package repository

import (
	"context"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/stretchr/testify/suite"
)

// cartRepositorySuite holds the behaviour every CartRepository must share.
// Each backend embeds it and provides repo in SetupSuite.
type cartRepositorySuite struct {
	suite.Suite

	repo CartRepository
}

func (suite *cartRepositorySuite) ctx() context.Context {
	return suite.T().Context()
}

func (suite *cartRepositorySuite) TestGetCart_NotFound() {
	cart, err := suite.repo.GetCart(suite.ctx(), gofakeit.UUID())

	suite.ErrorIs(err, ErrCartNotFound)
	suite.Nil(cart)
}

func (suite *cartRepositorySuite) TestSaveCart_InsertThenUpdate() {
	userID := gofakeit.UUID()

	cart := domain.NewCart(userID)
	cart.Items = append(cart.Items, domain.CartItem{ProductID: "p1", Quantity: 2})
	suite.Require().NoError(suite.repo.SaveCart(suite.ctx(), cart))
	suite.Equal(int64(1), cart.Version)
	suite.NotEmpty(cart.ID)
	suite.False(cart.CreatedAt.IsZero())

	loaded, err := suite.repo.GetCart(suite.ctx(), userID)
	suite.Require().NoError(err)
	loaded.Items[0].Quantity = 5
	suite.Require().NoError(suite.repo.SaveCart(suite.ctx(), loaded))
	suite.Equal(int64(2), loaded.Version)

	again, err := suite.repo.GetCart(suite.ctx(), userID)
	suite.Require().NoError(err)
	suite.Equal(5, again.Items[0].Quantity)
	suite.Equal(cart.ID, again.ID)
	suite.Equal(int64(2), again.Version)
}

func (suite *cartRepositorySuite) TestSaveCart_RoundTripsColorSnapshot() {
	userID := gofakeit.UUID()

	cart := domain.NewCart(userID)
	cart.Items = append(cart.Items,
		domain.CartItem{
			ProductID: "p1",
			Quantity:  3,
			Color:     &domain.ColorSnapshot{ID: "c1", Label: "Red", ImageRef: "red.jpg"},
			AddedAt:   time.Now().UTC(),
		},
		domain.CartItem{ProductID: "p2", Quantity: 1},
	)
	suite.Require().NoError(suite.repo.SaveCart(suite.ctx(), cart))

	loaded, err := suite.repo.GetCart(suite.ctx(), userID)
	suite.Require().NoError(err)
	suite.Require().Len(loaded.Items, 2)
	suite.Require().NotNil(loaded.Items[0].Color)
	suite.Equal(domain.ColorSnapshot{ID: "c1", Label: "Red", ImageRef: "red.jpg"}, *loaded.Items[0].Color)
	suite.Nil(loaded.Items[1].Color)
}

func (suite *cartRepositorySuite) TestSaveCart_StaleVersion() {
	userID := gofakeit.UUID()
	suite.Require().NoError(suite.repo.SaveCart(suite.ctx(), domain.NewCart(userID)))

	first, err := suite.repo.GetCart(suite.ctx(), userID)
	suite.Require().NoError(err)
	second, err := suite.repo.GetCart(suite.ctx(), userID)
	suite.Require().NoError(err)

	first.Items = append(first.Items, domain.CartItem{ProductID: "p1", Quantity: 1})
	suite.Require().NoError(suite.repo.SaveCart(suite.ctx(), first))

	second.Items = append(second.Items, domain.CartItem{ProductID: "p2", Quantity: 1})
	suite.ErrorIs(suite.repo.SaveCart(suite.ctx(), second), ErrVersionConflict)

	loaded, err := suite.repo.GetCart(suite.ctx(), userID)
	suite.Require().NoError(err)
	suite.Require().Len(loaded.Items, 1)
	suite.Equal("p1", loaded.Items[0].ProductID)
}

func (suite *cartRepositorySuite) TestSaveCart_DuplicateInsert() {
	userID := gofakeit.UUID()

	suite.Require().NoError(suite.repo.SaveCart(suite.ctx(), domain.NewCart(userID)))
	suite.ErrorIs(suite.repo.SaveCart(suite.ctx(), domain.NewCart(userID)), ErrVersionConflict)
}

func (suite *cartRepositorySuite) TestSaveCart_DoesNotAliasCaller() {
	userID := gofakeit.UUID()
	cart := domain.NewCart(userID)
	cart.Items = append(cart.Items, domain.CartItem{ProductID: "p1", Quantity: 1})
	suite.Require().NoError(suite.repo.SaveCart(suite.ctx(), cart))

	cart.Items[0].Quantity = 99
	loaded, err := suite.repo.GetCart(suite.ctx(), userID)
	suite.Require().NoError(err)
	suite.Equal(1, loaded.Items[0].Quantity)
}

func (suite *cartRepositorySuite) TestSaveCart_EmptyCartIsKept() {
	userID := gofakeit.UUID()
	cart := domain.NewCart(userID)
	cart.Items = append(cart.Items, domain.CartItem{ProductID: "p1", Quantity: 1})
	suite.Require().NoError(suite.repo.SaveCart(suite.ctx(), cart))

	cart.Items = nil
	suite.Require().NoError(suite.repo.SaveCart(suite.ctx(), cart))

	loaded, err := suite.repo.GetCart(suite.ctx(), userID)
	suite.Require().NoError(err)
	suite.NotNil(loaded.Items)
	suite.Empty(loaded.Items)
}

func (suite *cartRepositorySuite) TestPing() {
	suite.NoError(suite.repo.Ping(suite.ctx()))
}

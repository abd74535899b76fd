package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type productDocument struct {
	ID       any             `bson:"_id"`
	Title    string          `bson:"title"`
	Price    float64         `bson:"price"`
	Stock    int             `bson:"stock"`
	ImageURL string          `bson:"imageUrl"`
	Colors   []colorDocument `bson:"colors"`
}

type colorDocument struct {
	ID        any    `bson:"_id"`
	Label     string `bson:"label"`
	ImageRef  string `bson:"imageRef"`
	Inventory int    `bson:"inventory"`
}

// MongoCatalog reads products from the storefront's products collection.
// Ids are ObjectIDs in the admin-created data and plain strings in seeded
// data, so both forms are accepted.
type MongoCatalog struct {
	collection *mongo.Collection
}

func NewMongoCatalog(db *mongo.Database) *MongoCatalog {
	return &MongoCatalog{
		collection: db.Collection("products"),
	}
}

func (m *MongoCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var doc productDocument

	err := m.collection.FindOne(ctx, idFilter(productID)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	product := &domain.Product{
		ID:       idString(doc.ID),
		Title:    doc.Title,
		Price:    decimal.NewFromFloat(doc.Price),
		Stock:    doc.Stock,
		ImageURL: doc.ImageURL,
		Colors:   make([]domain.Color, 0, len(doc.Colors)),
	}
	for _, c := range doc.Colors {
		product.Colors = append(product.Colors, domain.Color{
			ID:        idString(c.ID),
			Label:     c.Label,
			ImageRef:  c.ImageRef,
			Inventory: c.Inventory,
		})
	}

	return product, nil
}

func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{oid, id}}}
	}
	return bson.M{"_id": id}
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

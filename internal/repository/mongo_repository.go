package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront-cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

func (m *MongoRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}

	if cart.Version == 0 {
		return m.insertCart(ctx, cart, now)
	}

	filter := bson.M{
		"user_id": cart.UserID,
		"version": cart.Version,
	}
	update := bson.M{
		"$set": bson.M{
			"items":      cart.Items,
			"updated_at": now,
		},
		"$inc": bson.M{"version": 1},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrVersionConflict
	}

	cart.Version++
	cart.UpdatedAt = now
	return nil
}

func (m *MongoRepository) insertCart(ctx context.Context, cart *domain.Cart, now time.Time) error {
	doc := *cart
	doc.ID = ""
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now

	result, err := m.collection.InsertOne(ctx, doc)
	if err != nil {
		// a concurrent first add created the cart between our load and insert
		if mongo.IsDuplicateKeyError(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to create cart: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		cart.ID = oid.Hex()
	}
	cart.Version = 1
	cart.CreatedAt = now
	cart.UpdatedAt = now
	return nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}

// CreateIndexes enforces one cart per user. Carts are kept indefinitely, so
// there is no TTL index.
func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

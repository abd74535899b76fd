package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// ConnectMongoDB opens a pooled client, waits for the primary to answer and
// returns the named database. The caller owns the client and must disconnect
// it through db.Client().
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("cart-service").
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetRetryWrites(true))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client.Database(database), nil
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/inkpath/backend/internal/accounts"
	"github.com/inkpath/backend/internal/stories"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const mongoConnectTimeout = 10 * time.Second

// OpenMongo connects to MongoDB, verifies the connection and creates the indexes the
// account and story stores rely on. The caller owns the returned client.
func OpenMongo(ctx context.Context, uri string, databaseName string, log *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	if uri == "" {
		return nil, nil, fmt.Errorf("mongo uri is required")
	}
	if databaseName == "" {
		return nil, nil, fmt.Errorf("mongo database name is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(databaseName)
	if err := accounts.EnsureMongoIndexes(connectCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ensure account indexes: %w", err)
	}
	if err := stories.EnsureMongoIndexes(connectCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ensure story indexes: %w", err)
	}

	if log != nil {
		log.Info("database initialized", zap.String("driver", "mongo"), zap.String("database", databaseName))
	}
	return client, db, nil
}

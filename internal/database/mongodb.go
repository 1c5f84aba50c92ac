package database

import (
	"context"
	"fmt"
	"time"

	"github.com/deskhub/deskhub/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectMongoWithRetry retries ConnectMongo with exponential backoff to
// tolerate startup races with the database container.
func ConnectMongoWithRetry(ctx context.Context, uri string, timeout time.Duration, maxAttempts int) (*mongo.Client, error) {
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("mongo unavailable after %d attempts: %w", maxAttempts, lastErr)
}

// Index describes a secondary index on a collection.
type Index struct {
	Collection string
	Keys       bson.D
	Unique     bool
	// Expire marks a TTL index: documents are purged once the indexed date passes.
	Expire bool
}

// Indexes lists the secondary indexes the service relies on. Every domain
// collection is queried by tenant first.
var Indexes = []Index{
	{Collection: "users", Keys: bson.D{{Key: "sub", Value: 1}}, Unique: true},
	{Collection: "sessions", Keys: bson.D{{Key: "sub", Value: 1}}},
	{Collection: "sessions", Keys: bson.D{{Key: "expiresAt", Value: 1}}, Expire: true},
	{Collection: "contacts", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "name", Value: 1}}},
	{Collection: "client_accounts", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "contactId", Value: 1}}},
	{Collection: "time_logs", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "accountId", Value: 1}, {Key: "date", Value: 1}}},
	{Collection: "invoices", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "number", Value: 1}}, Unique: true},
	{Collection: "invoices", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "year", Value: 1}, {Key: "seq", Value: -1}}},
	{Collection: "transactions", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "date", Value: 1}}},
	{Collection: "projects", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "status", Value: 1}}},
	{Collection: "employees", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "department", Value: 1}}},
	{Collection: "tasks", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "ownerId", Value: 1}, {Key: "start", Value: 1}}},
	{Collection: "ritual_settings", Keys: bson.D{{Key: "tenantId", Value: 1}}},
	{Collection: "ritual_runs", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}},
	{Collection: "folders", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "parentId", Value: 1}}},
	{Collection: "files", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "folderId", Value: 1}}},
	{Collection: "mail_messages", Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "status", Value: 1}}},
}

// EnsureIndexes creates the indexes listed in Indexes (idempotent).
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for _, ix := range Indexes {
		opts := options.Index()
		if ix.Unique {
			opts.SetUnique(true)
		}
		if ix.Expire {
			opts.SetExpireAfterSeconds(0)
		}
		model := mongo.IndexModel{Keys: ix.Keys, Options: opts}
		if _, err := db.Collection(ix.Collection).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", ix.Collection, err)
		}
	}
	return nil
}

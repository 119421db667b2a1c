// Package db manages MongoDB connections and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"           // Ordered index keys
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "chat_db"

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db holds the "accounts" and "documents" collections
	db *mongo.Database
}

// New connects to MongoDB and returns a Client for database (DefaultDatabase when empty).
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	// SetConnectTimeout: fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).                 // Parse connection string
		SetConnectTimeout(10 * time.Second) // Max time to connect

	// Creates the client; the first operation dials
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// If ping doesn't complete in 5 seconds, fail
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Ping MongoDB to verify connection is working
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if database == "" {
		database = DefaultDatabase
	}
	return &Client{
		client: client,
		db:     client.Database(database), // created lazily on first write
	}, nil
}

// AccountsCollection holds credentials and the auth profile.
func (c *Client) AccountsCollection() *mongo.Collection {
	return c.db.Collection("accounts")
}

// DocumentsCollection holds every document store record, keyed by its full path.
func (c *Client) DocumentsCollection() *mongo.Collection {
	return c.db.Collection("documents")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	// ctx can have timeout if you want to force shutdown after N seconds
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== ACCOUNTS COLLECTION INDEX =====
	// Unique email: duplicate signups fail with a duplicate key error
	accountsIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.AccountsCollection().Indexes().CreateOne(ctx, accountsIndex); err != nil {
		return fmt.Errorf("failed to create accounts index: %w", err)
	}

	// ===== DOCUMENTS COLLECTION INDEXES =====
	documentIndexes := []mongo.IndexModel{
		{
			// Query(): every query is scoped to one collection path, ordered by doc id on ties
			Keys: bson.D{{Key: "collection", Value: 1}, {Key: "doc_id", Value: 1}},
		},
		{
			// message feeds and the last-message lookup order by timestamp
			Keys: bson.D{{Key: "collection", Value: 1}, {Key: "data.timestamp", Value: 1}},
		},
		{
			// unread counts: receiverId == me && read == false
			Keys: bson.D{{Key: "collection", Value: 1}, {Key: "data.receiverId", Value: 1}, {Key: "data.read", Value: 1}},
		},
	}
	if _, err := c.DocumentsCollection().Indexes().CreateMany(ctx, documentIndexes); err != nil {
		return fmt.Errorf("failed to create document indexes: %w", err)
	}

	return nil
}

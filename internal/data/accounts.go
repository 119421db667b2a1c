// Package data provides the MongoDB stores behind the backend: accounts and
// the document store.
package data

import (
	"context" // Used for cancellation and timeouts
	"errors"  // Error handling
	"time"    // Timestamps

	"go.mongodb.org/mongo-driver/v2/bson"  // MongoDB document queries
	"go.mongodb.org/mongo-driver/v2/mongo" // MongoDB driver

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/normalize"
)

// ErrAccountNotFound is returned when no account matches a lookup.
var ErrAccountNotFound = apperr.NotFound("account not found")

// AccountsStore performs account DB operations.
type AccountsStore struct {
	// coll is reference to "accounts" collection in MongoDB
	coll *mongo.Collection
}

// NewAccountsStore returns an AccountsStore using the provided collection.
func NewAccountsStore(coll *mongo.Collection) *AccountsStore {
	return &AccountsStore{coll: coll}
}

// CreateAccount inserts a new account with an already hashed password.
func (s *AccountsStore) CreateAccount(ctx context.Context, email, hashedPassword string) (*Account, error) {
	now := time.Now()
	acc := &Account{
		Email:     normalize.Email(email),
		Password:  hashedPassword, // Already hashed by auth.HashPassword()
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := s.coll.InsertOne(ctx, acc)
	if err != nil {
		// unique email index (db.CreateIndexes) rejects a second signup
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperr.ErrEmailInUse
		}
		return nil, err
	}

	// MongoDB generates the _id; it becomes the uid in the JWT
	acc.ID = result.InsertedID.(bson.ObjectID)
	return acc, nil
}

// GetByEmail finds an account by (normalized) email.
func (s *AccountsStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findOne(ctx, bson.M{"email": normalize.Email(email)})
}

// GetByID finds an account by ObjectID.
func (s *AccountsStore) GetByID(ctx context.Context, id bson.ObjectID) (*Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *AccountsStore) findOne(ctx context.Context, filter bson.M) (*Account, error) {
	var acc Account
	err := s.coll.FindOne(ctx, filter).Decode(&acc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// UpdateProfile sets the auth profile fields that are non-nil.
func (s *AccountsStore) UpdateProfile(ctx context.Context, id bson.ObjectID, displayName, photoURL *string) error {
	set := bson.M{"updated_at": time.Now()}
	if displayName != nil {
		set["display_name"] = normalize.DisplayName(*displayName)
	}
	if photoURL != nil {
		set["photo_url"] = *photoURL
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// AccountExists checks if an account exists by email.
func (s *AccountsStore) AccountExists(ctx context.Context, email string) (bool, error) {
	// CountDocuments is cheaper than FindOne when only existence matters
	count, err := s.coll.CountDocuments(ctx, bson.M{"email": normalize.Email(email)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

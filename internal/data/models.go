package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Account maps to the accounts collection (credentials + auth profile).
type Account struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Email       string        `bson:"email"`
	Password    string        `bson:"password"`
	DisplayName string        `bson:"display_name,omitempty"`
	PhotoURL    string        `bson:"photo_url,omitempty"`
	CreatedAt   time.Time     `bson:"created_at"`
	UpdatedAt   time.Time     `bson:"updated_at"`
}

// documentRecord maps one document store entry to the documents collection.
// _id is the full "collection/id" path so lookups hit the primary index.
type documentRecord struct {
	Path       string    `bson:"_id"`
	Collection string    `bson:"collection"`
	DocID      string    `bson:"doc_id"`
	Data       bson.M    `bson:"data"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

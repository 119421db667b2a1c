// Package docstore defines the document store collaborator: documents
// addressed by collection path and id, equality queries with ordering and
// limits, atomic batches and push-based query subscriptions.
package docstore

import (
	"context"
	"strings"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

var (
	ErrNotFound = apperr.NotFound("document not found")
)

// Document is one stored record. Data holds JSON-compatible values only.
type Document struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Data       map[string]any `json:"data"`
}

// Path is the full slash path of the document.
func (d *Document) Path() string { return d.Collection + "/" + d.ID }

// Filter operators.
const (
	OpEqual    = "=="
	OpNotEqual = "!="
)

type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// Where builds an equality filter.
func Where(field, op string, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

type Query struct {
	Collection string   `json:"collection"`
	Filters    []Filter `json:"filters,omitempty"`
	OrderBy    string   `json:"order_by,omitempty"`
	Desc       bool     `json:"desc,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

type OpKind string

const (
	OpSet    OpKind = "set"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is one write inside a batch.
type Op struct {
	Kind       OpKind         `json:"kind"`
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Data       map[string]any `json:"data,omitempty"`
	Merge      bool           `json:"merge,omitempty"`
}

// Store is implemented by the in-memory engine, the Mongo-backed engine and
// the remote client.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Add creates a document with a generated, time-ordered id.
	Add(ctx context.Context, collection string, data map[string]any) (*Document, error)
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error
	// Update merges data into an existing document. A nil value deletes the field.
	Update(ctx context.Context, collection, id string, data map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]*Document, error)
	// Batch applies every op or none.
	Batch(ctx context.Context, ops []Op) error
	// Subscribe yields the full result set now and after every change to the
	// queried collection until the subscription is closed.
	Subscribe(ctx context.Context, q Query) (*stream.Subscription[[]*Document], error)
}

// Validate checks collection/id addressing: collection paths have an odd
// number of segments, ids contain no slash.
func ValidatePath(collection, id string) error {
	if collection == "" {
		return apperr.InvalidArg("collection path is required")
	}
	segs := strings.Split(collection, "/")
	if len(segs)%2 == 0 {
		return apperr.InvalidArg("collection path must have an odd number of segments: " + collection)
	}
	for _, s := range segs {
		if s == "" {
			return apperr.InvalidArg("empty segment in collection path: " + collection)
		}
	}
	if id != "" && strings.Contains(id, "/") {
		return apperr.InvalidArg("document id must not contain '/'")
	}
	return nil
}

// ValidateQuery checks the query operators.
func ValidateQuery(q Query) error {
	if err := ValidatePath(q.Collection, ""); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return apperr.InvalidArg("filter field is required")
		}
		if f.Op != OpEqual && f.Op != OpNotEqual {
			return apperr.InvalidArg("unsupported filter operator: " + f.Op)
		}
	}
	if q.Limit < 0 {
		return apperr.InvalidArg("limit must not be negative")
	}
	return nil
}

// ValidateOps checks every op of a batch before anything is applied.
func ValidateOps(ops []Op) error {
	for _, op := range ops {
		if err := ValidatePath(op.Collection, op.ID); err != nil {
			return err
		}
		if op.ID == "" {
			return apperr.InvalidArg("document id is required")
		}
		switch op.Kind {
		case OpSet, OpUpdate, OpDelete:
		default:
			return apperr.InvalidArg("unsupported op: " + string(op.Kind))
		}
	}
	return nil
}

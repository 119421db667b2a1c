package data

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/servervalue"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// DocumentsStore is the MongoDB backed docstore.Store. Every document lives
// in one collection keyed by its full path; subscriptions are served from
// the writes made through this store.
type DocumentsStore struct {
	coll     *mongo.Collection
	watchers *docstore.Watchers
	now      func() time.Time
}

// NewDocumentsStore returns a DocumentsStore using the provided collection.
func NewDocumentsStore(coll *mongo.Collection, logger *slog.Logger) *DocumentsStore {
	return &DocumentsStore{
		coll:     coll,
		watchers: docstore.NewWatchers(logger, 0),
		now:      time.Now,
	}
}

var _ docstore.Store = (*DocumentsStore)(nil)

func (s *DocumentsStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := docstore.ValidatePath(collection, id); err != nil {
		return nil, err
	}
	var rec documentRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": docstore.Join(collection, id)}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, docstore.ErrNotFound
		}
		return nil, errors.Wrap(err, "documents.Get.FindOne")
	}
	return rec.document(), nil
}

func (s *DocumentsStore) Add(ctx context.Context, collection string, data map[string]any) (*docstore.Document, error) {
	if err := docstore.ValidatePath(collection, ""); err != nil {
		return nil, err
	}
	now := s.now()
	id := docstore.NewID()
	resolved := servervalue.ResolveMap(docstore.CloneMap(data), now)
	if resolved == nil {
		resolved = map[string]any{}
	}
	rec := documentRecord{
		Path:       docstore.Join(collection, id),
		Collection: collection,
		DocID:      id,
		Data:       bson.M(resolved),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "documents.Add.InsertOne")
	}
	s.watchers.Notify(collection)
	return &docstore.Document{Collection: collection, ID: id, Data: resolved}, nil
}

func (s *DocumentsStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	return s.Batch(ctx, []docstore.Op{{Kind: docstore.OpSet, Collection: collection, ID: id, Data: data, Merge: merge}})
}

func (s *DocumentsStore) Update(ctx context.Context, collection, id string, data map[string]any) error {
	return s.Batch(ctx, []docstore.Op{{Kind: docstore.OpUpdate, Collection: collection, ID: id, Data: data}})
}

func (s *DocumentsStore) Delete(ctx context.Context, collection, id string) error {
	return s.Batch(ctx, []docstore.Op{{Kind: docstore.OpDelete, Collection: collection, ID: id}})
}

func (s *DocumentsStore) Query(ctx context.Context, q docstore.Query) ([]*docstore.Document, error) {
	if err := docstore.ValidateQuery(q); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(sortFor(q))
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cursor, err := s.coll.Find(ctx, filterFor(q), opts)
	if err != nil {
		return nil, errors.Wrap(err, "documents.Query.Find")
	}
	defer cursor.Close(ctx)

	var recs []documentRecord
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, errors.Wrap(err, "documents.Query.All")
	}
	docs := make([]*docstore.Document, 0, len(recs))
	for i := range recs {
		docs = append(docs, recs[i].document())
	}
	return docs, nil
}

// Batch checks that every updated document exists, then applies the ops
// as one ordered bulk write. A standalone server has no multi-document
// transactions, so a failure in the middle of the bulk write leaves the
// ops before it applied.
func (s *DocumentsStore) Batch(ctx context.Context, ops []docstore.Op) error {
	if err := docstore.ValidateOps(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	if err := s.requireExisting(ctx, ops); err != nil {
		return err
	}

	now := s.now()
	models := make([]mongo.WriteModel, 0, len(ops))
	touched := map[string]bool{}
	for _, op := range ops {
		models = append(models, writeModel(op, servervalue.ResolveMap(docstore.CloneMap(op.Data), now), now))
		touched[op.Collection] = true
	}
	if _, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return errors.Wrap(err, "documents.Batch.BulkWrite")
	}
	for c := range touched {
		s.watchers.Notify(c)
	}
	return nil
}

func (s *DocumentsStore) Subscribe(ctx context.Context, q docstore.Query) (*stream.Subscription[[]*docstore.Document], error) {
	return s.watchers.Watch(ctx, q, s.Query)
}

// Subscriptions is the number of open query subscriptions.
func (s *DocumentsStore) Subscriptions() int { return s.watchers.Count() }

func (s *DocumentsStore) requireExisting(ctx context.Context, ops []docstore.Op) error {
	paths := map[string]bool{}
	for _, op := range ops {
		if op.Kind == docstore.OpUpdate {
			paths[docstore.Join(op.Collection, op.ID)] = true
		}
	}
	if len(paths) == 0 {
		return nil
	}
	in := make(bson.A, 0, len(paths))
	for p := range paths {
		in = append(in, p)
	}
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": in}})
	if err != nil {
		return errors.Wrap(err, "documents.Batch.CountDocuments")
	}
	if int(n) != len(paths) {
		return docstore.ErrNotFound
	}
	return nil
}

func writeModel(op docstore.Op, data map[string]any, now time.Time) mongo.WriteModel {
	path := docstore.Join(op.Collection, op.ID)
	filter := bson.M{"_id": path}
	switch op.Kind {
	case docstore.OpDelete:
		return mongo.NewDeleteOneModel().SetFilter(filter)
	case docstore.OpUpdate:
		set := bson.M{"updated_at": now}
		unset := bson.M{}
		for k, v := range data {
			if v == nil {
				unset["data."+k] = ""
				continue
			}
			set["data."+k] = v
		}
		update := bson.M{"$set": set}
		if len(unset) > 0 {
			update["$unset"] = unset
		}
		return mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update)
	}

	if op.Merge {
		set := bson.M{"updated_at": now}
		for k, v := range data {
			set["data."+k] = v
		}
		update := bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"collection": op.Collection, "doc_id": op.ID, "created_at": now},
		}
		return mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update).SetUpsert(true)
	}
	if data == nil {
		data = map[string]any{}
	}
	rec := documentRecord{
		Path:       path,
		Collection: op.Collection,
		DocID:      op.ID,
		Data:       bson.M(data),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return mongo.NewReplaceOneModel().SetFilter(filter).SetReplacement(rec).SetUpsert(true)
}

// filterFor scopes the query to its collection. "!=" also requires the field
// to exist, matching docstore.Matches.
func filterFor(q docstore.Query) bson.D {
	filter := bson.D{{Key: "collection", Value: q.Collection}}
	if len(q.Filters) == 0 {
		return filter
	}
	and := make(bson.A, 0, len(q.Filters))
	for _, f := range q.Filters {
		field := "data." + f.Field
		switch f.Op {
		case docstore.OpNotEqual:
			and = append(and, bson.M{field: bson.M{"$exists": true, "$ne": f.Value}})
		default:
			and = append(and, bson.M{field: f.Value})
		}
	}
	return append(filter, bson.E{Key: "$and", Value: and})
}

// sortFor orders by the requested field, then by id ascending.
func sortFor(q docstore.Query) bson.D {
	sort := bson.D{}
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: "data." + q.OrderBy, Value: dir})
	}
	return append(sort, bson.E{Key: "doc_id", Value: 1})
}

func (r *documentRecord) document() *docstore.Document {
	data, _ := plain(r.Data).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	return &docstore.Document{Collection: r.Collection, ID: r.DocID, Data: data}
}

// plain converts decoded BSON values into the JSON-like shapes the rest of
// the code works with.
func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		return plainMap(t)
	case map[string]any:
		return plainMap(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		return plainList(t)
	case []any:
		return plainList(t)
	case int32:
		return int64(t)
	case bson.DateTime:
		return int64(t)
	default:
		return v
	}
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plain(v)
	}
	return out
}

func plainList(l []any) []any {
	out := make([]any, len(l))
	for i, e := range l {
		out[i] = plain(e)
	}
	return out
}

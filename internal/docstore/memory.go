package docstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tushar13233u/my-new-chat-app/internal/servervalue"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// NewID returns a time-ordered document id, so ordering by id follows
// creation order.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Memory is an in-process Store.
type Memory struct {
	mu       sync.RWMutex
	colls    map[string]map[string]*Document
	watchers *Watchers
	now      func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock sets the clock used for server timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithLogger sets the logger used by subscriptions.
func WithLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) { m.watchers = NewWatchers(l, 0) }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		colls:    map[string]map[string]*Document{},
		watchers: NewWatchers(nil, 0),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ValidatePath(collection, id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.colls[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(d), nil
}

func (m *Memory) Add(ctx context.Context, collection string, data map[string]any) (*Document, error) {
	if err := ValidatePath(collection, ""); err != nil {
		return nil, err
	}
	d := &Document{Collection: collection, ID: NewID(), Data: servervalue.ResolveMap(CloneMap(data), m.now())}
	if d.Data == nil {
		d.Data = map[string]any{}
	}

	m.mu.Lock()
	m.collection(collection)[d.ID] = d
	m.mu.Unlock()

	m.watchers.Notify(collection)
	return cloneDoc(d), nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	return m.Batch(ctx, []Op{{Kind: OpSet, Collection: collection, ID: id, Data: data, Merge: merge}})
}

func (m *Memory) Update(ctx context.Context, collection, id string, data map[string]any) error {
	return m.Batch(ctx, []Op{{Kind: OpUpdate, Collection: collection, ID: id, Data: data}})
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	return m.Batch(ctx, []Op{{Kind: OpDelete, Collection: collection, ID: id}})
}

func (m *Memory) Query(ctx context.Context, q Query) ([]*Document, error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}
	m.mu.RLock()
	docs := make([]*Document, 0, len(m.colls[q.Collection]))
	for _, d := range m.colls[q.Collection] {
		docs = append(docs, cloneDoc(d))
	}
	m.mu.RUnlock()
	return Apply(docs, q), nil
}

// Batch validates every op, checks that updated documents exist, then
// applies all ops under one lock.
func (m *Memory) Batch(ctx context.Context, ops []Op) error {
	if err := ValidateOps(ops); err != nil {
		return err
	}
	now := m.now()

	m.mu.Lock()
	for _, op := range ops {
		if op.Kind == OpUpdate {
			if _, ok := m.colls[op.Collection][op.ID]; !ok {
				m.mu.Unlock()
				return ErrNotFound
			}
		}
	}
	touched := map[string]bool{}
	for _, op := range ops {
		coll := m.collection(op.Collection)
		data := servervalue.ResolveMap(op.Data, now)
		switch op.Kind {
		case OpSet:
			if prev, ok := coll[op.ID]; ok && op.Merge {
				prev.Data = merge(prev.Data, data, false)
			} else {
				coll[op.ID] = &Document{Collection: op.Collection, ID: op.ID, Data: merge(nil, data, false)}
			}
		case OpUpdate:
			prev := coll[op.ID]
			prev.Data = merge(prev.Data, data, true)
		case OpDelete:
			delete(coll, op.ID)
		}
		touched[op.Collection] = true
	}
	m.mu.Unlock()

	for c := range touched {
		m.watchers.Notify(c)
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, q Query) (*stream.Subscription[[]*Document], error) {
	return m.watchers.Watch(ctx, q, m.Query)
}

// Subscriptions is the number of open query subscriptions.
func (m *Memory) Subscriptions() int { return m.watchers.Count() }

// collection must be called with m.mu held for writing.
func (m *Memory) collection(name string) map[string]*Document {
	c, ok := m.colls[name]
	if !ok {
		c = map[string]*Document{}
		m.colls[name] = c
	}
	return c
}

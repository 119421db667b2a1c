package docstore

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Runner evaluates a query against the backing storage.
type Runner func(ctx context.Context, q Query) ([]*Document, error)

// Watchers keeps the live query subscriptions of one store. Writers call
// Notify with the collections they touched; each affected subscription
// re-runs its query on its own goroutine and pushes the result when it
// differs from the last one delivered.
type Watchers struct {
	mu      sync.Mutex
	nextID  int64
	byColl  map[string]map[int64]*watch
	timeout time.Duration
	logger  *slog.Logger
}

type watch struct {
	q     Query
	run   Runner
	sub   *stream.Subscription[[]*Document]
	dirty chan struct{}
	last  []*Document
}

// NewWatchers returns an empty registry. queryTimeout bounds each re-run.
func NewWatchers(logger *slog.Logger, queryTimeout time.Duration) *Watchers {
	if logger == nil {
		logger = slog.Default()
	}
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &Watchers{byColl: map[string]map[int64]*watch{}, timeout: queryTimeout, logger: logger}
}

// Watch runs q once, delivers the result and keeps delivering until the
// subscription is closed or ctx is done. The watch is registered before the
// first run, so a write landing during that run marks it dirty and the
// loop re-runs the query.
func (w *Watchers) Watch(ctx context.Context, q Query, run Runner) (*stream.Subscription[[]*Document], error) {
	if err := ValidateQuery(q); err != nil {
		return nil, err
	}

	wt := &watch{q: q, run: run, dirty: make(chan struct{}, 1)}

	w.mu.Lock()
	w.nextID++
	id := w.nextID
	if _, ok := w.byColl[q.Collection]; !ok {
		w.byColl[q.Collection] = map[int64]*watch{}
	}
	w.byColl[q.Collection][id] = wt
	w.mu.Unlock()

	docs, err := run(ctx, q)
	if err != nil {
		w.remove(q.Collection, id)
		return nil, err
	}
	wt.last = docs
	wt.sub = stream.New[[]*Document](func() { w.remove(q.Collection, id) })
	wt.sub.Push(docs)

	go w.loop(ctx, wt)
	return wt.sub, nil
}

func (w *Watchers) remove(coll string, id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if subs, ok := w.byColl[coll]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(w.byColl, coll)
		}
	}
}

func (w *Watchers) loop(ctx context.Context, wt *watch) {
	for {
		select {
		case <-ctx.Done():
			wt.sub.Close()
			return
		case <-wt.sub.Done():
			return
		case <-wt.dirty:
			rctx, cancel := context.WithTimeout(context.Background(), w.timeout)
			docs, err := wt.run(rctx, wt.q)
			cancel()
			if err != nil {
				w.logger.Warn("re-running watched query failed", "collection", wt.q.Collection, "err", err)
				continue
			}
			if sameDocs(wt.last, docs) {
				continue
			}
			wt.last = docs
			wt.sub.Push(docs)
		}
	}
}

// Notify marks every subscription on the given collections dirty.
func (w *Watchers) Notify(collections ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range collections {
		for _, wt := range w.byColl[c] {
			select {
			case wt.dirty <- struct{}{}:
			default:
			}
		}
	}
}

// Count is the number of live subscriptions (all collections).
func (w *Watchers) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, subs := range w.byColl {
		n += len(subs)
	}
	return n
}

func sameDocs(a, b []*Document) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || !reflect.DeepEqual(a[i].Data, b[i].Data) {
			return false
		}
	}
	return true
}

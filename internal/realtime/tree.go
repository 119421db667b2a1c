// Package realtime is the realtime key-value collaborator: path addressed
// values, per-path subscriptions, and disconnect hooks registered per client
// session that the store runs when the session ends.
package realtime

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/servervalue"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// ConnectedPath is reserved: subscribing to it reports whether the
// subscriber's own session is connected.
const ConnectedPath = ".info/connected"

// Tree holds the values of every path. Paths are flat keys; a value at
// "status/u1" is unrelated to one at "status".
type Tree struct {
	mu     sync.Mutex
	values map[string]*structpb.Value
	subs   map[string]map[int64]*stream.Subscription[any]
	nextID int64
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Tree.
type Option func(*Tree)

func WithClock(now func() time.Time) Option { return func(t *Tree) { t.now = now } }

func WithLogger(l *slog.Logger) Option { return func(t *Tree) { t.logger = l } }

func NewTree(opts ...Option) *Tree {
	t := &Tree{
		values: map[string]*structpb.Value{},
		subs:   map[string]map[int64]*stream.Subscription[any]{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// NormalizePath trims slashes and rejects empty or reserved paths.
func NormalizePath(p string) (string, error) {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "", apperr.InvalidArg("path is required")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			return "", apperr.InvalidArg("empty segment in path: " + p)
		}
	}
	return p, nil
}

func (t *Tree) encode(v any) (*structpb.Value, error) {
	pv, err := structpb.NewValue(normalizeNumbers(servervalue.Resolve(v, t.now())))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidArgument, "unsupported realtime value", err)
	}
	return pv, nil
}

// set stores v at path and notifies subscribers when the value changed.
// A nil v removes the path.
func (t *Tree) set(path string, v any) error {
	if strings.HasPrefix(path, ".info") {
		return apperr.Forbidden("path is read-only: " + path)
	}
	var pv *structpb.Value
	if v != nil {
		var err error
		if pv, err = t.encode(v); err != nil {
			return err
		}
	}

	t.mu.Lock()
	prev, had := t.values[path]
	if pv == nil {
		delete(t.values, path)
	} else {
		t.values[path] = pv
	}
	changed := had != (pv != nil) || (had && !proto.Equal(prev, pv))
	var targets []*stream.Subscription[any]
	if changed {
		for _, s := range t.subs[path] {
			targets = append(targets, s)
		}
	}
	t.mu.Unlock()

	out := decode(pv)
	for _, s := range targets {
		s.Push(out)
	}
	return nil
}

// Get returns the current value at path, nil when unset.
func (t *Tree) Get(path string) (any, error) {
	p, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return decode(t.values[p]), nil
}

// subscribe registers a watcher on path; then, if set, runs after it is
// unregistered.
func (t *Tree) subscribe(path string, then func()) *stream.Subscription[any] {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	sub := stream.New[any](func() {
		t.unsubscribe(path, id)
		if then != nil {
			then()
		}
	})
	if _, ok := t.subs[path]; !ok {
		t.subs[path] = map[int64]*stream.Subscription[any]{}
	}
	t.subs[path][id] = sub
	sub.Push(decode(t.values[path]))
	return sub
}

func (t *Tree) unsubscribe(path string, id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if subs, ok := t.subs[path]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(t.subs, path)
		}
	}
}

// Subscribers is the number of live subscriptions on path.
func (t *Tree) Subscribers(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs[path])
}

func decode(v *structpb.Value) any {
	if v == nil {
		return nil
	}
	return v.AsInterface()
}

// normalizeNumbers converts integer kinds to float64, the only number kind
// structpb accepts without loss of type information.
func normalizeNumbers(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, e := range n {
			out[k] = normalizeNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = normalizeNumbers(e)
		}
		return out
	}
	return v
}

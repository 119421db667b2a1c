package realtime

import (
	"context"
	"sync"

	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Session is one client connection to the tree. Disconnect hooks registered
// on a session run when it is closed; its .info/connected subscriptions then
// observe false.
type Session struct {
	tree *Tree

	mu        sync.Mutex
	closed    bool
	hooks     map[string]any
	hookOrder []string
	connected map[*stream.Subscription[any]]struct{}
	subs      map[*stream.Subscription[any]]struct{}
}

func (t *Tree) NewSession() *Session {
	return &Session{
		tree:      t,
		hooks:     map[string]any{},
		connected: map[*stream.Subscription[any]]struct{}{},
		subs:      map[*stream.Subscription[any]]struct{}{},
	}
}

func (s *Session) Set(ctx context.Context, path string, v any) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.tree.set(p, v)
}

// OnDisconnectSet registers a write of v at path to run when the session
// ends. A later registration on the same path replaces the earlier one. The
// value is validated now so the hook cannot fail later.
func (s *Session) OnDisconnectSet(ctx context.Context, path string, v any) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}
	if v != nil {
		if _, err := s.tree.encode(v); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	if _, ok := s.hooks[p]; !ok {
		s.hookOrder = append(s.hookOrder, p)
	}
	s.hooks[p] = v
	return nil
}

// CancelOnDisconnect drops the hook registered on path, if any.
func (s *Session) CancelOnDisconnect(ctx context.Context, path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hooks[p]; ok {
		delete(s.hooks, p)
		for i, hp := range s.hookOrder {
			if hp == p {
				s.hookOrder = append(s.hookOrder[:i], s.hookOrder[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Subscribe yields the value at path now and on every change.
func (s *Session) Subscribe(ctx context.Context, path string) (*stream.Subscription[any], error) {
	p, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if p == ConnectedPath {
		var sub *stream.Subscription[any]
		sub = stream.New[any](func() { s.drop(sub) })
		sub.Push(!s.closed)
		if !s.closed {
			s.connected[sub] = struct{}{}
		}
		return sub, nil
	}
	if s.closed {
		return nil, errSessionClosed
	}
	var sub *stream.Subscription[any]
	sub = s.tree.subscribe(p, func() { s.drop(sub) })
	s.subs[sub] = struct{}{}
	return sub, nil
}

// Close ends the session: disconnect hooks run in registration order, the
// session's subscriptions are released, and .info/connected reports false.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	order := s.hookOrder
	hooks := s.hooks
	s.hooks, s.hookOrder = nil, nil
	connected := s.connected
	subs := s.subs
	s.connected, s.subs = nil, nil
	s.mu.Unlock()

	for _, p := range order {
		if err := s.tree.set(p, hooks[p]); err != nil {
			s.tree.logger.Warn("disconnect hook failed", "path", p, "err", err)
		}
	}
	for sub := range subs {
		sub.Close()
	}
	for sub := range connected {
		sub.Push(false)
	}
}

// drop forgets a released subscription. Once closed the session no longer
// tracks any.
func (s *Session) drop(sub *stream.Subscription[any]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
	delete(s.connected, sub)
}

// Subscriptions is the number of open subscriptions the session tracks,
// .info/connected ones included.
func (s *Session) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) + len(s.connected)
}

// Hooks is the number of registered disconnect hooks.
func (s *Session) Hooks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hooks)
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	return nil
}

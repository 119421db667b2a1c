package stream

import "sync"

// Group owns the subscriptions and cancel funcs opened by one view and
// releases all of them on Close, in reverse order of registration.
type Group struct {
	mu      sync.Mutex
	closers []func()
	closed  bool
}

type closer interface{ Close() }

// Add registers c. If the group is already closed, c is closed right away.
func (g *Group) Add(c closer) {
	g.AddFunc(c.Close)
}

// AddFunc registers fn to run on Close.
func (g *Group) AddFunc(fn func()) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		fn()
		return
	}
	g.closers = append(g.closers, fn)
	g.mu.Unlock()
}

// Close runs every registered func once.
func (g *Group) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	closers := g.closers
	g.closers = nil
	g.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

// Len is the number of live registrations.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.closers)
}

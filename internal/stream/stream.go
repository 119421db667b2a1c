// Package stream provides the subscription handle used for every push-based
// feed: documents, realtime values, auth state, aggregated views.
//
// A Subscription delivers the latest value. When the consumer is slower than
// the producer, intermediate values are dropped and only the newest one is
// kept, so a reader never works through a stale backlog.
package stream

import "sync"

// Subscription is a lazy, push-based sequence of values with an explicit
// release. The zero value is not usable; create one with New.
type Subscription[T any] struct {
	mu      sync.Mutex
	ch      chan T
	done    chan struct{}
	closed  bool
	release func()
}

// New returns an open subscription. release runs once, on the first Close.
func New[T any](release func()) *Subscription[T] {
	return &Subscription[T]{
		ch:      make(chan T, 1),
		done:    make(chan struct{}),
		release: release,
	}
}

// Updates is the channel values arrive on. It is never closed; select on
// Done to observe the end of the subscription.
func (s *Subscription[T]) Updates() <-chan T { return s.ch }

// Done is closed once the subscription is closed.
func (s *Subscription[T]) Done() <-chan struct{} { return s.done }

// Push replaces any undelivered value with v. It never blocks and reports
// false once the subscription is closed.
func (s *Subscription[T]) Push(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
	return true
}

// Close releases the producer side. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	release := s.release
	s.release = nil
	s.mu.Unlock()

	if release != nil {
		release()
	}
}

// Closed reports whether Close has been called.
func (s *Subscription[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SetRelease replaces the release func. Producers that can only finish
// wiring after the handle exists use this. If the subscription is already
// closed, fn runs immediately.
func (s *Subscription[T]) SetRelease(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if fn != nil {
			fn()
		}
		return
	}
	s.release = fn
	s.mu.Unlock()
}

// Map forwards every value of src through fn into a new subscription.
// Closing the result closes src.
func Map[T, U any](src *Subscription[T], fn func(T) U) *Subscription[U] {
	out := New[U](src.Close)
	go func() {
		for {
			select {
			case v := <-src.Updates():
				out.Push(fn(v))
			case <-src.Done():
				out.Close()
				return
			case <-out.Done():
				return
			}
		}
	}()
	return out
}

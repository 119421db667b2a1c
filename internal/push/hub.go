package push

import (
	"fmt"
	"sync"
)

// Deliverer is one live connection of a device: a gRPC stream or a websocket.
type Deliverer interface {
	Deliver(Payload) error
}

// Hub maps device tokens to their live connections. A device may hold more
// than one connection; every one of them receives the payload.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[int64]Deliverer
	nextID int64
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[int64]Deliverer)}
}

// Register adds d for token and returns the id to unregister it with.
func (h *Hub) Register(token string, d Deliverer) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[token]; !ok {
		h.conns[token] = make(map[int64]Deliverer)
	}
	h.nextID++
	id := h.nextID
	h.conns[token][id] = d
	return id
}

func (h *Hub) Unregister(token string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[token]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.conns, token)
		}
	}
}

// Connected reports whether token has at least one live connection.
func (h *Hub) Connected(token string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[token]) > 0
}

// Send delivers p to every connection of p.Token. Connections that fail are
// unregistered; the first failure is returned.
func (h *Hub) Send(p Payload) error {
	h.mu.RLock()
	conns := make(map[int64]Deliverer, len(h.conns[p.Token]))
	for id, d := range h.conns[p.Token] {
		conns[id] = d
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("device %s not connected", p.Token)
	}

	var firstErr error
	var failed []int64
	for id, d := range conns {
		if err := d.Deliver(p); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		h.Unregister(p.Token, id)
	}
	return firstErr
}

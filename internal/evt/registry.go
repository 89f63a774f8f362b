// Package evt implements the per-event-id client-descriptor registry used
// to fan raised framework events out to whichever clients registered
// interest, independent of which subsystem ultimately raises them.
package evt

import "sync"

// ID identifies a raisable event kind, e.g. media-format-changed or
// EOS-rendered. The core never interprets the value; it is whatever the
// raising subsystem and its registered clients agree on.
type ID uint32

// Client receives a raised event's opaque payload. Payload shape is
// owned by the event ID's producer/consumer pair, not by the registry.
type Client interface {
	HandleEvent(id ID, payload any)
}

// Registry holds, per event ID, the set of clients currently registered
// for it. One Registry is shared by every port/module of a single
// container instance.
type Registry struct {
	mu      sync.Mutex
	clients map[ID][]Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[ID][]Client)}
}

// Register adds c to id's client list if it is not already present.
func (r *Registry) Register(id ID, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.clients[id] {
		if existing == c {
			return
		}
	}
	r.clients[id] = append(r.clients[id], c)
}

// Deregister removes c from id's client list, if present.
func (r *Registry) Deregister(id ID, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.clients[id]
	for i, existing := range list {
		if existing == c {
			r.clients[id] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// DeregisterAll removes c from every event ID's client list, used when a
// client (e.g. a placeholder module being rebound) tears down.
func (r *Registry) DeregisterAll(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, list := range r.clients {
		for i, existing := range list {
			if existing == c {
				r.clients[id] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

// IsRegistered reports whether c is currently registered for id.
func (r *Registry) IsRegistered(id ID, c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.clients[id] {
		if existing == c {
			return true
		}
	}
	return false
}

// Raise fans payload out to every client currently registered for id. A
// snapshot of the client list is taken under the lock and the list is
// walked outside it, since HandleEvent may re-enter the registry (e.g.
// deregistering itself on EOS).
func (r *Registry) Raise(id ID, payload any) {
	r.mu.Lock()
	list := append([]Client(nil), r.clients[id]...)
	r.mu.Unlock()
	for _, c := range list {
		c.HandleEvent(id, payload)
	}
}

// Count returns how many clients are registered for id, mainly for
// tests and diagnostics.
func (r *Registry) Count(id ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients[id])
}

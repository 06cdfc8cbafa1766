package presence

import (
	"sort"
	"sync"
)

// Registry tracks which identities currently hold open connections. All
// mutation goes through one mutex, so online/offline transitions observed by
// callers never interleave. Duplicate connections from the same identity are
// tracked independently; an identity is online while at least one of its
// connections is open.
type Registry struct {
	mu    sync.Mutex
	conns map[string]string // connection id -> identity ("" for anonymous)
	count map[string]int    // identity -> open connection count
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]string),
		count: make(map[string]int),
	}
}

// Connect registers a connection. cameOnline is true when this is the
// identity's first open connection; anonymous connections never flip
// presence.
func (r *Registry) Connect(connID, identity string) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connID] = identity
	if identity == "" {
		return false
	}
	r.count[identity]++
	return r.count[identity] == 1
}

// Disconnect removes a connection. wentOffline is true when the identity has
// no connections left. Disconnecting an unknown connection is a no-op.
func (r *Registry) Disconnect(connID string) (identity string, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	delete(r.conns, connID)
	if identity == "" {
		return "", false
	}
	r.count[identity]--
	if r.count[identity] <= 0 {
		delete(r.count, identity)
		return identity, true
	}
	return identity, false
}

// IsOnline reports whether the identity has any open connection.
func (r *Registry) IsOnline(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count[identity] > 0
}

// ListOnline returns the sorted set of online identities.
func (r *Registry) ListOnline() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.count))
	for id := range r.count {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

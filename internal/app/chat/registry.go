package chat

import (
	"sync"

	"skymessage/internal/pkg/errs"
)

// Registry maps a user identity to the set of live connections it owns.
// A user may hold zero, one or several simultaneous connections; a
// connection belongs to exactly one identity for its whole lifetime.
//
// Registry is safe for concurrent use from any number of
// connection-handling goroutines.
type Registry struct {
	mu sync.RWMutex

	// byUser maps identity -> connection id -> client.
	byUser map[string]map[string]*Client

	// byConn maps connection id -> bound identity.
	byConn map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]*Client),
		byConn: make(map[string]string),
	}
}

// Bind associates the connection with an identity. Binding the same
// connection to the same identity again is a no-op; binding it to a
// different identity fails with ErrAlreadyBound.
func (r *Registry) Bind(client *Client, identity string) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bound, ok := r.byConn[client.id]; ok {
		if bound == identity {
			return nil
		}
		return errs.NewError(errs.ErrAlreadyBound)
	}

	r.byConn[client.id] = identity

	conns, ok := r.byUser[identity]
	if !ok {
		conns = make(map[string]*Client)
		r.byUser[identity] = conns
	}
	conns[client.id] = client

	return nil
}

// UnbindAll removes the connection from the registry and returns the
// identity it was bound to, if any. Idempotent: unbinding an unknown or
// already-removed connection reports ok=false.
func (r *Registry) UnbindAll(connID string) (identity string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok = r.byConn[connID]
	if !ok {
		return "", false
	}

	delete(r.byConn, connID)

	if conns, exists := r.byUser[identity]; exists {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byUser, identity)
		}
	}

	return identity, true
}

// ConnectionsFor returns a snapshot of the identity's live connections.
// The result is empty, never nil, for an unknown identity.
func (r *Registry) ConnectionsFor(identity string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[identity]

	snapshot := make([]*Client, 0, len(conns))
	for _, client := range conns {
		snapshot = append(snapshot, client)
	}
	return snapshot
}

// IdentityOf returns the identity bound to the connection, if any.
func (r *Registry) IdentityOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byConn[connID]
	return identity, ok
}

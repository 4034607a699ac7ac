package relay

import (
	"sync"

	"github.com/loqui-chat/loqui/pkg/metrics"
)

// Conn is the registry's non-owning view of a live client connection.
// Deliver enqueues a payload without blocking and reports whether the
// connection accepted it. Close asks the owner to tear the connection down.
type Conn interface {
	Deliver(payload []byte) bool
	Close()
}

// Registry maps user identities to live connections. All methods are safe
// for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]Conn
	identities map[Conn]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[string]Conn),
		identities: make(map[Conn]string),
	}
}

// Attach associates conn with identity. A prior connection attached to the
// same identity is evicted and closed, so at most one live connection per
// identity holds at any instant.
func (r *Registry) Attach(conn Conn, identity string) {
	var stale Conn

	r.mu.Lock()
	if prev, ok := r.byIdentity[identity]; ok && prev != conn {
		delete(r.identities, prev)
		stale = prev
	}
	if prevIdentity, ok := r.identities[conn]; ok && prevIdentity != identity {
		delete(r.byIdentity, prevIdentity)
	}
	r.byIdentity[identity] = conn
	r.identities[conn] = identity
	metrics.ActiveConnections.Set(float64(len(r.byIdentity)))
	r.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
}

// Detach removes the association for conn; it is a no-op when conn was never
// attached.
func (r *Registry) Detach(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[conn]
	if !ok {
		return
	}
	delete(r.identities, conn)
	// Only drop the identity mapping if it still points at this connection;
	// a reauthentication may already have replaced it.
	if r.byIdentity[identity] == conn {
		delete(r.byIdentity, identity)
	}
	metrics.ActiveConnections.Set(float64(len(r.byIdentity)))
}

// Contains reports whether conn is currently attached.
func (r *Registry) Contains(conn Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.identities[conn]
	return ok
}

// Lookup returns the live connection for identity, if any.
func (r *Registry) Lookup(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byIdentity[identity]
	return conn, ok
}

package events

import "sync"

// Connection is one live observer. Send must be safe for concurrent use and
// must not block indefinitely; implementations report a slow or closed
// observer by returning an error, which removes them from the registry.
type Connection interface {
	ID() string
	Send(Envelope) error
	Close() error
}

// Registry tracks live observer connections. It is the only structure mutated
// by unrelated flows concurrently (connect/disconnect against every
// broadcast), so all access goes through its mutex and iteration works on
// snapshots.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Connection)}
}

// Register adds a connection. Re-registering the same ID replaces the old
// connection, which is closed.
func (r *Registry) Register(conn Connection) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	previous := r.conns[conn.ID()]
	r.conns[conn.ID()] = conn
	r.mu.Unlock()

	if previous != nil && previous != conn {
		_ = previous.Close()
	}
}

// Unregister removes a connection by ID. Removing an unknown ID is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// Snapshot returns the current connections. The slice is private to the
// caller and safe to iterate while the registry mutates.
func (r *Registry) Snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Get returns the connection with the given ID, or nil.
func (r *Registry) Get(id string) Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[id]
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

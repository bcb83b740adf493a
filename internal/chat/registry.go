package chat

import (
	"sync"
)

// Conn is the minimal surface the registry needs from a live connection:
// something that can push one event to exactly one client.
type Conn interface {
	Push(msg OutboundMessage) error
}

// Registry tracks which accounts currently have an open connection. It is
// the only shared mutable structure in-process and is safe for concurrent
// use. It is a best-effort presence cache, never an oracle for "has ever
// been online": entries are rebuilt from scratch on restart.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]Conn
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[int64]Conn),
	}
}

// Register inserts or overwrites the entry for accountID. A second
// connection from the same account supersedes the first.
func (r *Registry) Register(accountID int64, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[accountID] = conn
}

// Unregister removes the entry if present; a no-op otherwise.
func (r *Registry) Unregister(accountID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, accountID)
}

// Release removes the entry only if conn is still the registered handle.
// A superseded connection tearing down late must not evict its successor.
func (r *Registry) Release(accountID int64, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[accountID] == conn {
		delete(r.conns, accountID)
	}
}

// Lookup returns the live handle for accountID, if any. Pure read.
func (r *Registry) Lookup(accountID int64) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[accountID]
	return conn, ok
}

// Size reports how many accounts are currently connected.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

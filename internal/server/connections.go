package server

import (
	"encoding/json"
	"errors"
	"sync"
)

// Conn pairs a connection id with its message endpoint. It is the opaque
// handle the registries know clients by.
type Conn struct {
	ID string
	ep endpoint
}

func (c *Conn) send(envelope any) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return c.ep.WriteMessage(data)
}

func (c *Conn) close() {
	_ = c.ep.Close()
}

var (
	ErrServerFull        = errors.New("server is at client capacity")
	ErrDuplicateUsername = errors.New("username already in use")
	ErrClientNotFound    = errors.New("client not found")
)

// ClientRegistry maps connections to unique usernames. One mutex serializes
// every operation; in particular the uniqueness check and the insert in Add
// happen under the same critical section, so two simultaneous logins with
// the same name can never both succeed.
type ClientRegistry struct {
	mu       sync.Mutex
	capacity int
	byConn   map[string]*clientEntry // connection id → entry
	byName   map[string]*clientEntry // username → entry
}

type clientEntry struct {
	conn     *Conn
	username string
}

func NewClientRegistry(capacity int) *ClientRegistry {
	return &ClientRegistry{
		capacity: capacity,
		byConn:   make(map[string]*clientEntry),
		byName:   make(map[string]*clientEntry),
	}
}

// Add registers a connection under a username. Fails with ErrServerFull at
// capacity and ErrDuplicateUsername if the name is taken.
func (r *ClientRegistry) Add(conn *Conn, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.byConn) >= r.capacity {
		return ErrServerFull
	}
	if _, taken := r.byName[username]; taken {
		return ErrDuplicateUsername
	}
	if _, present := r.byConn[conn.ID]; present {
		return ErrDuplicateUsername
	}

	entry := &clientEntry{conn: conn, username: username}
	r.byConn[conn.ID] = entry
	r.byName[username] = entry
	return nil
}

// Remove drops the client owning the connection id.
func (r *ClientRegistry) Remove(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byConn[connID]
	if !ok {
		return ErrClientNotFound
	}
	delete(r.byConn, connID)
	delete(r.byName, entry.username)
	return nil
}

// FindByUsername returns the connection bound to a username.
func (r *ClientRegistry) FindByUsername(username string) (*Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byName[username]
	if !ok {
		return nil, ErrClientNotFound
	}
	return entry.conn, nil
}

// FindUsername returns the username bound to a connection id.
func (r *ClientRegistry) FindUsername(connID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byConn[connID]
	if !ok {
		return "", ErrClientNotFound
	}
	return entry.username, nil
}

// IsUnique reports whether no connected client holds the username.
func (r *ClientRegistry) IsUnique(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, taken := r.byName[username]
	return !taken
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConn)
}

// Others returns every connection except those owned by the excluded
// usernames. The snapshot is taken under the lock; sends happen outside it.
func (r *ClientRegistry) Others(exclude ...string) []*Conn {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]*Conn, 0, len(r.byConn))
	for _, entry := range r.byConn {
		if skip[entry.username] {
			continue
		}
		conns = append(conns, entry.conn)
	}
	return conns
}

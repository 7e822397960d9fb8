package core

import (
	"context"
	"sort"
	"sync"
)

// Member is a point-in-time view of a registered connection.
type Member struct {
	ID   string
	Name string
	Icon string
	Addr string

	conn *Connection
}

// Send delivers frame to the member's transport.
func (m Member) Send(ctx context.Context, frame string) error {
	if m.conn == nil {
		return ErrClosed
	}
	return m.conn.Send(ctx, frame)
}

type entry struct {
	conn *Connection
	name string
	icon string
	seq  uint64
}

func (e *entry) member() Member {
	return Member{ID: e.conn.ID, Name: e.name, Icon: e.icon, Addr: e.conn.Addr, conn: e.conn}
}

// Registry is the set of live, handshaken connections and their metadata.
// All access goes through one mutex; snapshots are copies ordered by registration.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	nextSeq uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds conn with its handshake metadata and returns the members that
// were already present, captured under the same lock.
func (r *Registry) Register(conn *Connection, name, icon string) ([]Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[conn.ID]; exists {
		return nil, ErrAlreadyRegistered
	}
	peers := r.snapshotLocked()
	r.nextSeq++
	r.entries[conn.ID] = &entry{conn: conn, name: name, icon: icon, seq: r.nextSeq}
	return peers, nil
}

// Remove deletes id and returns its final metadata. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Member{}, false
	}
	delete(r.entries, id)
	return e.member(), true
}

// SetName changes the display name of id.
func (r *Registry) SetName(id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return ErrNotRegistered
	}
	e.name = name
	return nil
}

// SetIcon changes the icon of id and returns the updated member.
func (r *Registry) SetIcon(id, icon string) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Member{}, ErrNotRegistered
	}
	e.icon = icon
	return e.member(), nil
}

// Lookup returns the current metadata of id.
func (r *Registry) Lookup(id string) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Member{}, false
	}
	return e.member(), true
}

// Snapshot returns every member in registration order.
func (r *Registry) Snapshot() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

func (r *Registry) snapshotLocked() []Member {
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	members := make([]Member, 0, len(entries))
	for _, e := range entries {
		members = append(members, e.member())
	}
	return members
}

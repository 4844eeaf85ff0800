package notifier

import (
	"slices"
	"time"
)

// StationConn is an authenticated connection owned by the Registry.
type StationConn struct {
	ID          int64
	Transport   Transport
	ConnectedAt time.Time
	LastSeen    time.Time
}

// Registry maps station identities to their single live connection.
//
// It is not safe for concurrent use; the service loop is its only owner.
type Registry struct {
	conns map[int64]*StationConn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]*StationConn)}
}

// Promote admits t as the connection for id. An existing connection for
// the same id is closed and removed before t is inserted; the return value
// reports whether that happened.
func (r *Registry) Promote(id int64, t Transport, now time.Time) (displaced bool) {
	if old, ok := r.conns[id]; ok {
		_ = old.Transport.Close() //nolint:errcheck // displaced peer may already be gone
		delete(r.conns, id)
		displaced = true
	}
	r.conns[id] = &StationConn{
		ID:          id,
		Transport:   t,
		ConnectedAt: now,
		LastSeen:    now,
	}
	return displaced
}

// Route returns the live transport for id.
func (r *Registry) Route(id int64) (Transport, bool) {
	sc, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	return sc.Transport, true
}

// Get returns the entry for id.
func (r *Registry) Get(id int64) (*StationConn, bool) {
	sc, ok := r.conns[id]
	return sc, ok
}

// Touch refreshes LastSeen for id if t is still its connection.
func (r *Registry) Touch(id int64, t Transport, now time.Time) bool {
	sc, ok := r.conns[id]
	if !ok || sc.Transport != t {
		return false
	}
	sc.LastSeen = now
	return true
}

// Remove closes and removes the entry for id if t is still its connection.
// A stale handle for a displaced connection leaves the new entry alone.
func (r *Registry) Remove(id int64, t Transport) bool {
	sc, ok := r.conns[id]
	if !ok || sc.Transport != t {
		return false
	}
	_ = sc.Transport.Close() //nolint:errcheck // best effort
	delete(r.conns, id)
	return true
}

// EvictStale closes and removes every entry idle for at least timeout and
// returns the evicted IDs in ascending order.
func (r *Registry) EvictStale(now time.Time, timeout time.Duration) []int64 {
	var evicted []int64
	for id, sc := range r.conns {
		if now.Sub(sc.LastSeen) >= timeout {
			_ = sc.Transport.Close() //nolint:errcheck // best effort
			delete(r.conns, id)
			evicted = append(evicted, id)
		}
	}
	slices.Sort(evicted)
	return evicted
}

// Entries returns the current entries ordered by ID. The slice is a copy;
// the entries are shared.
func (r *Registry) Entries() []*StationConn {
	out := make([]*StationConn, 0, len(r.conns))
	for _, sc := range r.conns {
		out = append(out, sc)
	}
	slices.SortFunc(out, func(a, b *StationConn) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// IDs returns the registered identities in ascending order.
func (r *Registry) IDs() []int64 {
	ids := make([]int64, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered stations.
func (r *Registry) Len() int {
	return len(r.conns)
}

// CloseAll closes and removes every entry, returning the closed IDs.
func (r *Registry) CloseAll() []int64 {
	ids := r.IDs()
	for _, id := range ids {
		_ = r.conns[id].Transport.Close() //nolint:errcheck // shutting down
		delete(r.conns, id)
	}
	return ids
}

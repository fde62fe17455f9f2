package delegate

import (
	"log/slog"
	"sync"

	"github.com/e7canasta/orion-care-sensor/modules/screen-relay/internal/host"
	"github.com/google/uuid"
)

// Table maps opaque delegate ids to boxed handlers.
//
// The host trampoline only ever carries a host.DelegateID; the handler is
// looked up here on every delivery and removed on teardown, so no pointer
// crosses the host boundary.
type Table[H any] struct {
	mu      sync.RWMutex
	entries map[host.DelegateID]*entry[H]
}

type entry[H any] struct {
	handler H
}

// NewTable returns an empty table.
func NewTable[H any]() *Table[H] {
	return &Table[H]{entries: make(map[host.DelegateID]*entry[H])}
}

// Register boxes handler under a fresh id.
func (t *Table[H]) Register(handler H) host.DelegateID {
	id := host.DelegateID(uuid.NewString())

	t.mu.Lock()
	t.entries[id] = &entry[H]{handler: handler}
	n := len(t.entries)
	t.mu.Unlock()

	slog.Debug("delegate: registered", "delegate_id", id, "entries", n)
	return id
}

// Lookup returns the handler registered under id.
func (t *Table[H]) Lookup(id host.DelegateID) (H, bool) {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()

	if !ok {
		var zero H
		return zero, false
	}
	return e.handler, true
}

// Unregister removes id. It reports whether an entry was removed.
func (t *Table[H]) Unregister(id host.DelegateID) bool {
	t.mu.Lock()
	_, ok := t.entries[id]
	delete(t.entries, id)
	n := len(t.entries)
	t.mu.Unlock()

	if ok {
		slog.Debug("delegate: unregistered", "delegate_id", id, "entries", n)
	}
	return ok
}

// Len returns the number of registered handlers.
func (t *Table[H]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

package resource

import (
	"sync"
)

// Table maps handles to host values. It is safe for concurrent use.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

type entry struct {
	value any
	typ   string
	valid bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 16),
		freeList: make([]Handle, 0, 8),
	}
}

// Insert stores value under the WIT resource type name typ and returns its
// handle, or 0 once the table is closed.
func (t *Table) Insert(typ string, value any) Handle {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}

	e := entry{typ: typ, value: value, valid: true}
	var h Handle
	if n := len(t.freeList); n > 0 {
		h = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[h-1] = e
	} else {
		t.entries = append(t.entries, e)
		h = Handle(len(t.entries))
	}
	t.mu.Unlock()

	t.notify(Event{Kind: EventCreated, Handle: h, Type: typ, Value: value})
	return h
}

func (t *Table) lookup(h Handle) (entry, bool) {
	if h == 0 {
		return entry{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(h) > len(t.entries) {
		return entry{}, false
	}
	e := t.entries[h-1]
	return e, e.valid
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	e, ok := t.lookup(h)
	return e.value, ok
}

// TypeOf returns the resource type name of a live handle.
func (t *Table) TypeOf(h Handle) (string, bool) {
	e, ok := t.lookup(h)
	return e.typ, ok
}

// Remove drops a resource and returns its value. Droppers are called.
func (t *Table) Remove(h Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}

	t.mu.Lock()
	if int(h) > len(t.entries) || !t.entries[h-1].valid {
		t.mu.Unlock()
		return nil, false
	}
	e := t.entries[h-1]
	t.entries[h-1] = entry{}
	t.freeList = append(t.freeList, h)
	t.mu.Unlock()

	if d, ok := e.value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Kind: EventDropped, Handle: h, Type: e.typ, Value: e.value})
	return e.value, true
}

// Each calls fn for every live resource until it returns false.
func (t *Table) Each(fn func(Handle, string, any) bool) {
	t.mu.RLock()
	live := make([]Handle, 0, len(t.entries))
	for i, e := range t.entries {
		if e.valid {
			live = append(live, Handle(i+1))
		}
	}
	t.mu.RUnlock()

	for _, h := range live {
		e, ok := t.lookup(h)
		if ok && !fn(h, e.typ, e.value) {
			return
		}
	}
}

// Len returns the number of live resources.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// Close drops all resources and stops accepting new ones.
func (t *Table) Close() error {
	var handles []Handle
	t.Each(func(h Handle, _ string, _ any) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Remove(h)
	}
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

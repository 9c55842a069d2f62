package pageref

import (
	"fmt"
	"sync"
)

// NoOwner marks an entry that nobody has claimed yet.
const NoOwner = -1

// Entry describes one physical frame
type Entry struct {
	Frame int `json:"frame"`
	Count int `json:"count"`
	// Owner is the pid of the last process that allocated or shared the frame
	Owner int `json:"owner"`
}

// Table keeps a reference count per frame, guarded by a single lock
type Table struct {
	mu      sync.Mutex
	entries []Entry
}

// NewTable creates a table for frames frames, all with zero references
func NewTable(frames int) *Table {
	entries := make([]Entry, frames)
	for i := range entries {
		entries[i] = Entry{Frame: i, Owner: NoOwner}
	}
	return &Table{entries: entries}
}

// Incr adds a reference to frame and records owner; it returns the new count
func (t *Table) Incr(frame, owner int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(frame)
	e.Count++
	e.Owner = owner
	return e.Count
}

// Decr drops a reference and returns the remaining count
func (t *Table) Decr(frame int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(frame)
	if e.Count <= 0 {
		panic(fmt.Sprintf("pageref: refcount underflow on frame %d", frame))
	}
	e.Count--
	if e.Count == 0 {
		e.Owner = NoOwner
	}
	return e.Count
}

// Count returns the reference count of frame
func (t *Table) Count(frame int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entry(frame).Count
}

// Entry returns a copy of the frame entry
func (t *Table) Entry(frame int) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.entry(frame)
}

// Referenced returns the number of frames with at least one reference
func (t *Table) Referenced() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ret := 0
	for i := range t.entries {
		if t.entries[i].Count > 0 {
			ret++
		}
	}
	return ret
}

func (t *Table) entry(frame int) *Entry {
	if frame < 0 || frame >= len(t.entries) {
		panic(fmt.Sprintf("pageref: frame %d out of range", frame))
	}
	return &t.entries[frame]
}

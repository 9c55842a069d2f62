package pageref

import "fmt"

// Allocator is the physical frame allocator collaborator
type Allocator interface {
	Allocate() (int, error)
	Free(frame int)
	Bytes(frame int) []byte
	PageSize() int
}

// Pool hands out refcounted frames
type Pool struct {
	allocator Allocator
	refs      *Table
}

// NewPool wraps allocator with refs
func NewPool(allocator Allocator, refs *Table) *Pool {
	return &Pool{allocator: allocator, refs: refs}
}

// Alloc allocates a frame with a single reference held by owner
func (p *Pool) Alloc(owner int) (int, error) {
	frame, err := p.allocator.Allocate()
	if err != nil {
		return -1, err
	}
	if count := p.refs.Incr(frame, owner); count != 1 {
		panic(fmt.Sprintf("pageref: fresh frame %d has %d references", frame, count))
	}
	return frame, nil
}

// Share adds a reference to an allocated frame on behalf of owner
func (p *Pool) Share(frame, owner int) int {
	return p.refs.Incr(frame, owner)
}

// Free drops one reference; the frame goes back to the allocator at zero
func (p *Pool) Free(frame int) {
	if p.refs.Decr(frame) == 0 {
		p.allocator.Free(frame)
	}
}

// Bytes returns frame contents
func (p *Pool) Bytes(frame int) []byte {
	return p.allocator.Bytes(frame)
}

// PageSize returns frame size in bytes
func (p *Pool) PageSize() int {
	return p.allocator.PageSize()
}

// Refs returns the reference table
func (p *Pool) Refs() *Table {
	return p.refs
}

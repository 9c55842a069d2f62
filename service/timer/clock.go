package timer

import "sync/atomic"

// Clock is the global tick counter. Advance is only called with the
// kernel's tick lock held; Now may be read at any time.
type Clock struct {
	ticks atomic.Uint64
}

// Now returns the current tick
func (c *Clock) Now() uint64 {
	return c.ticks.Load()
}

// Advance increments the tick counter and returns the new value
func (c *Clock) Advance() uint64 {
	return c.ticks.Add(1)
}

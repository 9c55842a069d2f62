package timer

import (
	"sync"
	"sync/atomic"
)

// Line is the interrupt line of one CPU
type Line struct {
	mode          Mode
	cyclesPerTick int
	// cycles is only touched by the thread currently running on the CPU
	cycles  int
	pending atomic.Bool
	mu      sync.Mutex
	irqs    []int
}

// Cycle accounts one executed cycle and raises the timer when a tick is due
func (l *Line) Cycle() {
	if l.mode != ModeCycle {
		return
	}
	l.cycles++
	if l.cycles >= l.cyclesPerTick {
		l.cycles = 0
		l.pending.Store(true)
	}
}

// RaiseTimer marks a timer interrupt pending
func (l *Line) RaiseTimer() {
	l.pending.Store(true)
}

// TakeTimer consumes a pending timer interrupt
func (l *Line) TakeTimer() bool {
	return l.pending.CompareAndSwap(true, false)
}

// Raise queues a device interrupt
func (l *Line) Raise(irq int) {
	l.mu.Lock()
	l.irqs = append(l.irqs, irq)
	l.mu.Unlock()
}

// Claim dequeues the oldest pending device interrupt
func (l *Line) Claim() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.irqs) == 0 {
		return 0, false
	}
	irq := l.irqs[0]
	l.irqs = l.irqs[1:]
	return irq, true
}

package kernel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// spinlock may be released by a goroutine other than the one that acquired
// it, which is how a lock follows a context switch. Acquisition gives up
// once the machine halts.
type spinlock struct {
	name   string
	mu     sync.Mutex
	held   atomic.Bool
	halted <-chan struct{}
}

func (l *spinlock) acquire() {
	for !l.mu.TryLock() {
		select {
		case <-l.halted:
			runtime.Goexit()
		default:
		}
		runtime.Gosched()
	}
	l.held.Store(true)
}

// release panics on a lock nobody holds instead of letting the runtime
// abort on an unlocked mutex.
func (l *spinlock) release() {
	if !l.held.CompareAndSwap(true, false) {
		panic("release " + l.name)
	}
	l.mu.Unlock()
}

// holding reports whether the lock is held by anyone
func (l *spinlock) holding() bool {
	return l.held.Load()
}
